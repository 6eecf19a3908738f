package admin

import (
	"net/http"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	"github.com/dropDatabas3/tenantauth/internal/http/middlewares"
	adminsvc "github.com/dropDatabas3/tenantauth/internal/services/admin"
	"github.com/dropDatabas3/tenantauth/internal/services/session"
)

// AccountController maneja registro, login y datos propios del admin.
type AccountController struct {
	admin    adminsvc.Service
	sessions session.Manager
	cookies  helpers.CookieConfig
}

// Register maneja POST /v1/admin/auth/register
func (c *AccountController) Register(w http.ResponseWriter, r *http.Request) {
	var in adminsvc.RegisterInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	res, err := c.admin.Register(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, res)
}

// Login maneja POST /v1/admin/auth/login. Deja access y refresh en cookies.
func (c *AccountController) Login(w http.ResponseWriter, r *http.Request) {
	var in session.LoginAdminInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	res, err := c.sessions.LoginAdmin(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	helpers.SetSession(w, c.cookies, res.Session)
	helpers.WriteJSON(w, http.StatusOK, res)
}

// SendOTP maneja POST /v1/admin/auth/otp/send
func (c *AccountController) SendOTP(w http.ResponseWriter, r *http.Request) {
	var in session.SendOTPInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.IsAdmin = true
	in.ProjectID = ""

	res, err := c.sessions.SendOTP(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, res)
}

// VerifyOTP maneja POST /v1/admin/auth/otp/verify
func (c *AccountController) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in session.VerifyOTPInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	res, err := c.sessions.VerifyAdminOTP(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Refresh maneja POST /v1/admin/auth/refresh
func (c *AccountController) Refresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	raw := helpers.RefreshToken(r, c.cookies, in.RefreshToken)
	if raw == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("refresh token"))
		return
	}
	res, err := c.sessions.Refresh(r.Context(), adminScope(raw))
	if err != nil {
		if httperrors.KindOf(err) != httperrors.KindInternal {
			helpers.ClearSession(w, c.cookies)
		}
		httperrors.WriteError(w, err)
		return
	}
	helpers.NoStore(w)
	helpers.SetSession(w, c.cookies, res.Session)
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Logout maneja POST /v1/admin/auth/logout
func (c *AccountController) Logout(w http.ResponseWriter, r *http.Request) {
	raw := helpers.RefreshToken(r, c.cookies, "")
	helpers.ClearSession(w, c.cookies)
	if raw == "" {
		helpers.WriteJSON(w, http.StatusOK, session.Result{Success: true})
		return
	}
	res, err := c.sessions.Logout(r.Context(), adminScope(raw))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// adminScope: en estas rutas sólo valen refresh tokens de administrador.
func adminScope(raw string) session.RefreshInput {
	return session.RefreshInput{Token: raw, Owner: repository.OwnerAdmin}
}

// Me maneja GET /v1/admin/me
func (c *AccountController) Me(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.Claims(r.Context())
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	res, err := c.admin.Me(r.Context(), claims.Subject)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// ChangeEmail maneja PUT /v1/admin/me/email. Revoca las sesiones abiertas.
func (c *AccountController) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.Claims(r.Context())
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	var in session.ChangeEmailInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.AdminID = claims.Subject

	res, err := c.sessions.ChangeAdminEmail(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.ClearSession(w, c.cookies)
	helpers.WriteJSON(w, http.StatusOK, res)
}
