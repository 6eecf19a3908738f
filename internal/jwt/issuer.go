package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken agrupa firma inválida, expirado y malformado.
// Los servicios lo traducen a Unauthorized.
var ErrInvalidToken = errors.New("jwt: invalid token")

// Issuer firma y valida tokens EdDSA con la clave del KeySet.
type Issuer struct {
	Iss  string
	Keys *KeySet

	now    func() time.Time
	leeway time.Duration
}

func NewIssuer(iss string, ks *KeySet) *Issuer {
	return &Issuer{Iss: iss, Keys: ks, now: time.Now, leeway: 5 * time.Second}
}

func (i *Issuer) sign(claims jwtv5.Claims) (string, error) {
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Priv)
}

func (i *Issuer) keyfunc(t *jwtv5.Token) (any, error) {
	if kid, _ := t.Header["kid"].(string); kid != i.Keys.KID {
		return nil, fmt.Errorf("kid desconocido: %q", kid)
	}
	return i.Keys.Pub, nil
}

func (i *Issuer) parserOpts() []jwtv5.ParserOption {
	return []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodEdDSA.Alg()}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(i.leeway),
		jwtv5.WithTimeFunc(i.now),
	}
}

// IssueAccess completa iss/iat/nbf/exp/jti y firma. sub debe venir en c.Subject.
func (i *Issuer) IssueAccess(c AccessClaims, ttl time.Duration) (string, time.Time, error) {
	if c.Subject == "" {
		return "", time.Time{}, errors.New("jwt: subject vacío")
	}
	now := i.now().UTC()
	exp := now.Add(ttl)
	c.Issuer = i.Iss
	c.IssuedAt = jwtv5.NewNumericDate(now)
	c.NotBefore = jwtv5.NewNumericDate(now)
	c.ExpiresAt = jwtv5.NewNumericDate(exp)
	c.ID = uuid.NewString()
	if c.Role == "" {
		c.Role = RoleUser
	}

	signed, err := i.sign(&c)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccess valida firma, emisor y expiración.
func (i *Issuer) VerifyAccess(token string) (*AccessClaims, error) {
	var c AccessClaims
	tk, err := jwtv5.ParseWithClaims(token, &c, i.keyfunc, i.parserOpts()...)
	if err != nil || !tk.Valid {
		return nil, ErrInvalidToken
	}
	if c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// MagicLink es el contenido verificado de un token de magic link. JTI
// identifica el token para poder canjearlo una sola vez.
type MagicLink struct {
	Email     string
	ProjectID string
	JTI       string
	ExpiresAt time.Time
}

// SignMagicLink firma el token que viaja en el link del email y devuelve su jti.
func (i *Issuer) SignMagicLink(email, projectID string, ttl time.Duration) (token, jti string, err error) {
	now := i.now().UTC()
	jti = uuid.NewString()
	token, err = i.sign(&magicLinkClaims{
		Typ:       typMagicLink,
		Email:     email,
		ProjectID: projectID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    i.Iss,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	})
	if err != nil {
		return "", "", err
	}
	return token, jti, nil
}

// VerifyMagicLink valida el token. Un access token no pasa (typ distinto).
func (i *Issuer) VerifyMagicLink(token string) (*MagicLink, error) {
	var c magicLinkClaims
	tk, err := jwtv5.ParseWithClaims(token, &c, i.keyfunc, i.parserOpts()...)
	if err != nil || !tk.Valid || c.Typ != typMagicLink || c.Email == "" || c.ProjectID == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return &MagicLink{Email: c.Email, ProjectID: c.ProjectID, JTI: c.ID, ExpiresAt: c.ExpiresAt.Time}, nil
}
