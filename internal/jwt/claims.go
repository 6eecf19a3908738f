package jwt

import jwtv5 "github.com/golang-jwt/jwt/v5"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	typMagicLink = "magic_link"
)

// AccessClaims es el payload del access token, tanto para admins como usuarios.
// Para admins ProjectID queda vacío y Role es "admin".
type AccessClaims struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Verified  bool   `json:"verified"`
	Role      string `json:"role"`
	MFA       bool   `json:"mfa"`
	ProjectID string `json:"pid,omitempty"`
	jwtv5.RegisteredClaims
}

// IsAdmin es true para tokens emitidos por el login de administradores.
func (c *AccessClaims) IsAdmin() bool { return c.Role == RoleAdmin && c.ProjectID == "" }

type magicLinkClaims struct {
	Typ       string `json:"typ"`
	Email     string `json:"email"`
	ProjectID string `json:"pid"`
	jwtv5.RegisteredClaims
}
