// Package oauth contiene los controllers del flujo authorization code.
package oauth

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	"github.com/dropDatabas3/tenantauth/internal/http/middlewares"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/oauth"
)

type Controller struct {
	svc     oauth.Service
	cookies helpers.CookieConfig
	// SuccessRedirect, si está configurado, recibe al navegador después del
	// callback en lugar de responder JSON.
	successRedirect string
}

func NewController(svc oauth.Service, cookies helpers.CookieConfig, successRedirect string) *Controller {
	return &Controller{svc: svc, cookies: cookies, successRedirect: successRedirect}
}

// Authorize maneja GET /v1/oauth/{provider}/authorize (detrás de TenantGate).
// Con ?redirect=true responde 302 directo al proveedor.
func (c *Controller) Authorize(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.AuthorizationURL(r.Context(), oauth.AuthorizationInput{
		ProjectID: middlewares.ProjectID(r.Context()),
		Provider:  chi.URLParam(r, "provider"),
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, res.URL, http.StatusFound)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Callback maneja GET /v1/oauth/{provider}/callback. No pasa por TenantGate:
// el proyecto sale del state.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		logger.From(r.Context()).Info("provider returned error", logger.Provider(chi.URLParam(r, "provider")), logger.String("error", e))
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("el proveedor rechazó la autorización: "+e))
		return
	}
	in := oauth.CallbackInput{Code: q.Get("code"), State: q.Get("state")}
	if in.Code == "" || in.State == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("code y state son requeridos"))
		return
	}

	res, err := c.svc.HandleCallback(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	helpers.SetSession(w, c.cookies, res.Session)

	if c.successRedirect != "" {
		u, err := url.Parse(c.successRedirect)
		if err == nil {
			v := u.Query()
			v.Set("projectId", res.ProjectID)
			u.RawQuery = v.Encode()
			http.Redirect(w, r, u.String(), http.StatusFound)
			return
		}
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	helpers.WriteJSON(w, status, res)
}
