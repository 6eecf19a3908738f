// Package auth contiene los controllers de los flujos de usuarios finales.
// Todas las rutas pasan por TenantGate: el proyecto sale del contexto.
package auth

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	"github.com/dropDatabas3/tenantauth/internal/http/middlewares"
	"github.com/dropDatabas3/tenantauth/internal/services/session"
)

// Controller maneja /v1/auth/*.
type Controller struct {
	sessions session.Manager
	cookies  helpers.CookieConfig
}

func NewController(s session.Manager, cookies helpers.CookieConfig) *Controller {
	return &Controller{sessions: s, cookies: cookies}
}

// projectFrom prioriza el proyecto que resolvió el gate sobre el del body.
func projectFrom(r *http.Request, fromBody string) string {
	if pid := middlewares.ProjectID(r.Context()); pid != "" {
		return pid
	}
	return strings.TrimSpace(fromBody)
}

// scope limita el refresh a tokens de usuario del proyecto del gate.
func (c *Controller) scope(r *http.Request, raw string) session.RefreshInput {
	return session.RefreshInput{Token: raw, Owner: repository.OwnerUser, ProjectID: projectFrom(r, "")}
}

func (c *Controller) writeSession(w http.ResponseWriter, res *session.LoginResult, status int) {
	helpers.NoStore(w)
	helpers.SetSession(w, c.cookies, res.Session)
	helpers.WriteJSON(w, status, res)
}

// Register maneja POST /v1/auth/register
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	var in session.RegisterUserInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.ProjectID = projectFrom(r, in.ProjectID)

	res, err := c.sessions.RegisterUser(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	c.writeSession(w, res, http.StatusCreated)
}

// Login maneja POST /v1/auth/login
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	var in session.LoginUserInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.ProjectID = projectFrom(r, in.ProjectID)

	res, err := c.sessions.LoginUser(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	c.writeSession(w, res, http.StatusOK)
}

// CreateMagicLink maneja POST /v1/auth/magic-link
func (c *Controller) CreateMagicLink(w http.ResponseWriter, r *http.Request) {
	var in session.MagicLinkInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.ProjectID = projectFrom(r, in.ProjectID)

	res, err := c.sessions.CreateMagicLink(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, res)
}

// VerifyMagicLink maneja POST /v1/auth/magic-link/verify
func (c *Controller) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	if in.Token == "" {
		in.Token = r.URL.Query().Get("token")
	}

	res, err := c.sessions.VerifyMagicLink(r.Context(), session.VerifyMagicLinkInput{
		Token:     in.Token,
		ProjectID: middlewares.ProjectID(r.Context()),
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	c.writeSession(w, res, http.StatusOK)
}

// SendOTP maneja POST /v1/auth/otp/send
func (c *Controller) SendOTP(w http.ResponseWriter, r *http.Request) {
	var in session.SendOTPInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.IsAdmin = false
	in.ProjectID = projectFrom(r, in.ProjectID)

	res, err := c.sessions.SendOTP(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, res)
}

// VerifyOTP maneja POST /v1/auth/otp/verify
func (c *Controller) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in session.VerifyOTPInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.ProjectID = projectFrom(r, in.ProjectID)

	res, err := c.sessions.VerifyUserOTP(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Refresh maneja POST /v1/auth/refresh
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
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

	res, err := c.sessions.Refresh(r.Context(), c.scope(r, raw))
	if err != nil {
		if httperrors.KindOf(err) != httperrors.KindInternal {
			helpers.ClearSession(w, c.cookies)
		}
		httperrors.WriteError(w, err)
		return
	}
	c.writeSession(w, res, http.StatusOK)
}

// Logout maneja POST /v1/auth/logout. Sin refresh igual limpia las cookies.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	raw := helpers.RefreshToken(r, c.cookies, in.RefreshToken)
	helpers.ClearSession(w, c.cookies)
	if raw == "" {
		helpers.WriteJSON(w, http.StatusOK, session.Result{Success: true})
		return
	}

	res, err := c.sessions.Logout(r.Context(), c.scope(r, raw))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// ChangePassword maneja PUT /v1/auth/password. Requiere RequireUser.
func (c *Controller) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middlewares.Claims(r.Context())
	if claims == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	var in session.ChangePasswordInput
	if !helpers.ReadJSON(w, r, &in) {
		return
	}
	in.UserID = claims.Subject
	in.ProjectID = claims.ProjectID

	res, err := c.sessions.ChangeUserPassword(r.Context(), in)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.ClearSession(w, c.cookies)
	helpers.WriteJSON(w, http.StatusOK, res)
}
