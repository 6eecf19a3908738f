package admin

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	"github.com/dropDatabas3/tenantauth/internal/services/webauthn"
)

type WebAuthnController struct {
	svc webauthn.Service
}

// BeginRegistration maneja POST /v1/admin/webauthn/register/begin
func (c *WebAuthnController) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	res, err := c.svc.BeginRegistration(r.Context(), aid)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, res)
}

// FinishRegistration maneja POST /v1/admin/webauthn/register/finish. El body
// es la respuesta del navegador a navigator.credentials.create tal cual.
func (c *WebAuthnController) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<10))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithCause(err))
		return
	}
	res, err := c.svc.FinishRegistration(r.Context(), aid, body)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, res)
}

// List maneja GET /v1/admin/webauthn/credentials
func (c *WebAuthnController) List(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	res, err := c.svc.ListCredentials(r.Context(), aid)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "credentials": res})
}

// Delete maneja DELETE /v1/admin/webauthn/credentials/{credentialID}
func (c *WebAuthnController) Delete(w http.ResponseWriter, r *http.Request) {
	aid, ok := adminID(w, r)
	if !ok {
		return
	}
	if err := c.svc.DeleteCredential(r.Context(), aid, chi.URLParam(r, "credentialID")); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
