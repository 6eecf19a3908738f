// Package session implementa los flujos de login del núcleo: password,
// magic link, OTP, refresh y cambios de credenciales.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/cache"
	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/email"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/metrics"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	store "github.com/dropDatabas3/tenantauth/internal/store"
)

// Deps contiene las dependencias del SessionManager.
type Deps struct {
	Store      store.Connection
	Issuer     *jwtx.Issuer
	Hasher     *password.Hasher
	Policy     password.Policy
	Mailer     email.Mailer
	// Cache guarda los jti de magic links pendientes de canje. nil = memoria local.
	Cache      cache.Client
	Dispatcher *common.Dispatcher
	TTL        common.TTLs
	Now        func() time.Time // nil = time.Now
}

// Manager define las operaciones de sesión.
type Manager interface {
	LoginUser(ctx context.Context, in LoginUserInput) (*LoginResult, error)
	LoginAdmin(ctx context.Context, in LoginAdminInput) (*LoginResult, error)
	RegisterUser(ctx context.Context, in RegisterUserInput) (*LoginResult, error)

	CreateMagicLink(ctx context.Context, in MagicLinkInput) (*Result, error)
	VerifyMagicLink(ctx context.Context, in VerifyMagicLinkInput) (*LoginResult, error)

	SendOTP(ctx context.Context, in SendOTPInput) (*Result, error)
	VerifyAdminOTP(ctx context.Context, in VerifyOTPInput) (*Result, error)
	VerifyUserOTP(ctx context.Context, in VerifyOTPInput) (*Result, error)

	Refresh(ctx context.Context, in RefreshInput) (*LoginResult, error)
	Logout(ctx context.Context, in RefreshInput) (*Result, error)
	ChangeUserPassword(ctx context.Context, in ChangePasswordInput) (*Result, error)
	ChangeAdminEmail(ctx context.Context, in ChangeEmailInput) (*Result, error)
}

type manager struct {
	deps   Deps
	minter *common.Minter
}

// NewManager crea el SessionManager.
func NewManager(d Deps) Manager {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Hasher == nil {
		d.Hasher = password.NewHasher(password.Default)
	}
	if d.Cache == nil {
		d.Cache = cache.NewMemory("session:")
	}
	d.TTL = d.TTL.WithDefaults()
	return &manager{
		deps: d,
		minter: &common.Minter{
			Issuer:  d.Issuer,
			Refresh: d.Store.RefreshTokens(),
			TTL:     d.TTL.Refresh,
			Now:     d.Now,
		},
	}
}

// ─── Inputs / Results ───

type LoginUserInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	ProjectID string `json:"projectId"`
}

type LoginAdminInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterUserInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ProjectID string `json:"projectId"`
}

type MagicLinkInput struct {
	ProjectID    string `json:"projectId"`
	Email        string `json:"email"`
	RedirectBase string `json:"redirectBase"`
}

type SendOTPInput struct {
	Email     string `json:"email"`
	IsAdmin   bool   `json:"isAdmin"`
	ProjectID string `json:"projectId,omitempty"`
}

type VerifyOTPInput struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	ProjectID string `json:"projectId,omitempty"`
}

type ChangePasswordInput struct {
	UserID          string `json:"-"`
	ProjectID       string `json:"projectId"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ChangeEmailInput struct {
	AdminID  string `json:"-"`
	Password string `json:"password"`
	NewEmail string `json:"newEmail"`
}

// VerifyMagicLinkInput lleva el token y el proyecto que resolvió el gate.
// Un token de otro proyecto se rechaza antes de escribir nada.
type VerifyMagicLinkInput struct {
	Token     string `json:"token"`
	ProjectID string `json:"-"`
}

// RefreshInput acota el refresh token al ámbito de quien llama: tokens de
// otro tipo de dueño o de otro proyecto cuentan como inválidos.
type RefreshInput struct {
	Token     string
	Owner     repository.OwnerKind
	ProjectID string // vacío para admins
}

// Result es la respuesta mínima {success}.
type Result struct {
	Success bool `json:"success"`
}

// LoginResult agrega la sesión emitida. El refresh no se serializa: la capa
// HTTP lo pone en la cookie.
type LoginResult struct {
	Success bool `json:"success"`
	*common.Session
	PrincipalID string `json:"id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	ProjectID   string `json:"projectId,omitempty"`
}

func (m *manager) observe(method repository.AuthMethod, err error) {
	metrics.AuthAttempts.WithLabelValues(string(method), metrics.Result(err, isClientErr)).Inc()
}

func isClientErr(err error) bool {
	return httperrors.KindOf(err) != httperrors.KindInternal
}

func normEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
