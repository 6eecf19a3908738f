// Package admin contiene los controllers de la consola de administradores:
// cuenta, proyectos, proveedores OAuth y credenciales WebAuthn.
package admin

import (
	"github.com/dropDatabas3/tenantauth/internal/http/helpers"
	adminsvc "github.com/dropDatabas3/tenantauth/internal/services/admin"
	"github.com/dropDatabas3/tenantauth/internal/services/oauth"
	"github.com/dropDatabas3/tenantauth/internal/services/session"
	"github.com/dropDatabas3/tenantauth/internal/services/webauthn"
)

// Controllers agrupa los controllers del dominio admin.
type Controllers struct {
	Account   *AccountController
	Projects  *ProjectsController
	Providers *ProvidersController
	WebAuthn  *WebAuthnController
}

type Services struct {
	Admin    adminsvc.Service
	Sessions session.Manager
	OAuth    oauth.Service
	WebAuthn webauthn.Service
}

func NewControllers(s Services, cookies helpers.CookieConfig) *Controllers {
	return &Controllers{
		Account:   &AccountController{admin: s.Admin, sessions: s.Sessions, cookies: cookies},
		Projects:  &ProjectsController{admin: s.Admin},
		Providers: &ProvidersController{admin: s.Admin, oauth: s.OAuth},
		WebAuthn:  &WebAuthnController{svc: s.WebAuthn},
	}
}
