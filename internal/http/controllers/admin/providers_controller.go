package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	adminsvc "github.com/dropDatabas3/tenantauth/internal/services/admin"
	"github.com/dropDatabas3/tenantauth/internal/services/oauth"
)

// ProvidersController administra las credenciales OAuth de un proyecto.
// Antes de tocar nada verifica que el proyecto sea del admin.
type ProvidersController struct {
	admin adminsvc.Service
	oauth oauth.Service
}

func (c *ProvidersController) ownedProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	aid, ok := adminID(w, r)
	if !ok {
		return "", false
	}
	p, err := c.admin.GetProject(r.Context(), aid, chi.URLParam(r, "projectID"))
	if err != nil {
		httperrors.WriteError(w, err)
		return "", false
	}
	return p.ID, true
}

// Upsert maneja PUT /v1/admin/projects/{projectID}/oauth/{provider}
func (c *ProvidersController) Upsert(w http.ResponseWriter, r *http.Request) {
	pid, ok := c.ownedProject(w, r)
	if !ok {
		return
	}
	var in oauth.RegisterProviderInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.ProjectID = pid
	in.Provider = chi.URLParam(r, "provider")

	res, err := c.oauth.RegisterProvider(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// List maneja GET /v1/admin/projects/{projectID}/oauth
func (c *ProvidersController) List(w http.ResponseWriter, r *http.Request) {
	pid, ok := c.ownedProject(w, r)
	if !ok {
		return
	}
	res, err := c.oauth.ListProviders(r.Context(), pid)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "providers": res})
}

// Delete maneja DELETE /v1/admin/projects/{projectID}/oauth/{provider}
func (c *ProvidersController) Delete(w http.ResponseWriter, r *http.Request) {
	pid, ok := c.ownedProject(w, r)
	if !ok {
		return
	}
	if err := c.oauth.DeleteProvider(r.Context(), pid, chi.URLParam(r, "provider")); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
