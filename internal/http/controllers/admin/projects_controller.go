package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	"github.com/dropDatabas3/tenantauth/internal/http/middlewares"
	adminsvc "github.com/dropDatabas3/tenantauth/internal/services/admin"
)

type ProjectsController struct {
	admin adminsvc.Service
}

// adminID sale de las claims que dejó RequireAdmin.
func adminID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := middlewares.Claims(r.Context())
	if claims == nil || claims.Subject == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return "", false
	}
	return claims.Subject, true
}

// Create maneja POST /v1/admin/projects. Única respuesta con la API key en claro.
func (c *ProjectsController) Create(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	var in adminsvc.CreateProjectInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	res, err := c.admin.CreateProject(r.Context(), aid, in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusCreated, res)
}

// List maneja GET /v1/admin/projects
func (c *ProjectsController) List(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	res, err := c.admin.ListProjects(r.Context(), aid)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "projects": res})
}

// Get maneja GET /v1/admin/projects/{projectID}
func (c *ProjectsController) Get(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	res, err := c.admin.GetProject(r.Context(), aid, chi.URLParam(r, "projectID"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// RotateAPIKey maneja POST /v1/admin/projects/{projectID}/api-key
func (c *ProjectsController) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	res, err := c.admin.RotateAPIKey(r.Context(), aid, chi.URLParam(r, "projectID"))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Delete maneja DELETE /v1/admin/projects/{projectID}
func (c *ProjectsController) Delete(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	if err := c.admin.DeleteProject(r.Context(), aid, chi.URLParam(r, "projectID")); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
