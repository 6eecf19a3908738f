package common

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	tokens "github.com/dropDatabas3/tenantauth/internal/security/token"
)

// TTLs por flujo. Los access tokens tienen vidas distintas según cómo se
// autenticó el principal.
type TTLs struct {
	AdminAccess     time.Duration `yaml:"admin_access"`
	UserAccess      time.Duration `yaml:"user_access"`
	MagicLinkAccess time.Duration `yaml:"magic_link_access"`
	MagicLinkToken  time.Duration `yaml:"magic_link_token"`
	OTP             time.Duration `yaml:"otp"`
	OAuthState      time.Duration `yaml:"oauth_state"`
	Refresh         time.Duration `yaml:"refresh"`
}

var DefaultTTLs = TTLs{
	AdminAccess:     10 * time.Minute,
	UserAccess:      30 * time.Minute,
	MagicLinkAccess: 15 * time.Minute,
	MagicLinkToken:  10 * time.Minute,
	OTP:             10 * time.Minute,
	OAuthState:      10 * time.Minute,
	Refresh:         7 * 24 * time.Hour,
}

// WithDefaults completa los campos en cero.
func (t TTLs) WithDefaults() TTLs {
	fill := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&t.AdminAccess, DefaultTTLs.AdminAccess)
	fill(&t.UserAccess, DefaultTTLs.UserAccess)
	fill(&t.MagicLinkAccess, DefaultTTLs.MagicLinkAccess)
	fill(&t.MagicLinkToken, DefaultTTLs.MagicLinkToken)
	fill(&t.OTP, DefaultTTLs.OTP)
	fill(&t.OAuthState, DefaultTTLs.OAuthState)
	fill(&t.Refresh, DefaultTTLs.Refresh)
	return t
}

// Session son los dos artefactos de un login exitoso. La capa HTTP decide
// cómo entregarlos (body y cookie).
type Session struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Minter firma access tokens y persiste el refresh asociado.
type Minter struct {
	Issuer  *jwtx.Issuer
	Refresh repository.RefreshTokenRepository
	TTL     time.Duration // vida del refresh
	Now     func() time.Time
}

func (m *Minter) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// ForUser emite la sesión de un miembro de proyecto.
func (m *Minter) ForUser(ctx context.Context, u *repository.User, mb *repository.Membership, method repository.AuthMethod, accessTTL time.Duration) (*Session, error) {
	role := mb.Role
	if role == "" {
		role = jwtx.RoleUser
	}
	claims := jwtx.AccessClaims{
		Email:     u.Email,
		FirstName: mb.FirstName,
		LastName:  mb.LastName,
		Verified:  mb.Verified,
		Role:      role,
		ProjectID: mb.ProjectID,
	}
	claims.Subject = u.ID
	return m.issue(ctx, claims, accessTTL, repository.OwnerUser, u.ID, mb.ProjectID, method)
}

// ForAdmin emite la sesión de un administrador.
func (m *Minter) ForAdmin(ctx context.Context, a *repository.Admin, method repository.AuthMethod, accessTTL time.Duration) (*Session, error) {
	claims := jwtx.AccessClaims{
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Verified:  a.Verified,
		Role:      jwtx.RoleAdmin,
		MFA:       a.MFAEnabled,
	}
	claims.Subject = a.ID
	return m.issue(ctx, claims, accessTTL, repository.OwnerAdmin, a.ID, "", method)
}

func (m *Minter) issue(ctx context.Context, claims jwtx.AccessClaims, accessTTL time.Duration, kind repository.OwnerKind, ownerID, projectID string, method repository.AuthMethod) (*Session, error) {
	access, exp, err := m.Issuer.IssueAccess(claims, accessTTL)
	if err != nil {
		return nil, httperrors.ErrTokenIssueFailed.WithCause(err)
	}
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, httperrors.ErrTokenIssueFailed.WithCause(err)
	}
	refreshExp := m.now().Add(m.TTL)
	rt := &repository.RefreshToken{
		ID:         uuid.NewString(),
		TokenHash:  tokens.SHA256Base64URL(raw),
		OwnerKind:  kind,
		OwnerID:    ownerID,
		ProjectID:  projectID,
		AuthMethod: method,
		State:      repository.TokenActive,
		ExpiresAt:  refreshExp,
	}
	if err := m.Refresh.Create(ctx, rt); err != nil {
		return nil, MapRepo(err, nil)
	}
	return &Session{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     raw,
		RefreshExpiresAt: refreshExp,
	}, nil
}
