// Package webauthn registra credenciales WebAuthn de administradores para
// habilitar MFA. Hay un challenge vivo por admin.
package webauthn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	gowebauthn "github.com/go-webauthn/webauthn/webauthn"

	"github.com/dropDatabas3/tenantauth/internal/challenge"
	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/observability/logger"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	store "github.com/dropDatabas3/tenantauth/internal/store"
)

// Config del relying party.
type Config struct {
	RPID          string        `yaml:"rp_id" env:"WEBAUTHN_RP_ID"`
	RPDisplayName string        `yaml:"rp_display_name"`
	RPOrigins     []string      `yaml:"rp_origins" env:"WEBAUTHN_RP_ORIGINS" envSeparator:","`
	ChallengeTTL  time.Duration `yaml:"challenge_ttl"`
}

type Deps struct {
	Store      store.Connection
	Challenges challenge.Store
	Config     Config
	Now        func() time.Time
}

// Service define la ceremonia de registro.
type Service interface {
	BeginRegistration(ctx context.Context, adminID string) (*BeginResult, error)
	FinishRegistration(ctx context.Context, adminID string, response []byte) (*FinishResult, error)
	ListCredentials(ctx context.Context, adminID string) ([]CredentialView, error)
	DeleteCredential(ctx context.Context, adminID, credentialID string) error
}

type BeginResult struct {
	Success bool                         `json:"success"`
	Options *protocol.CredentialCreation `json:"options"`
}

type FinishResult struct {
	Success      bool   `json:"success"`
	CredentialID string `json:"credentialId"`
	MFAEnabled   bool   `json:"mfaEnabled"`
}

type CredentialView struct {
	ID         string    `json:"id"`
	Transports []string  `json:"transports,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type service struct {
	deps Deps
	wa   *gowebauthn.WebAuthn
}

func NewService(d Deps) (Service, error) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Config.ChallengeTTL <= 0 {
		d.Config.ChallengeTTL = 5 * time.Minute
	}
	if d.Config.RPDisplayName == "" {
		d.Config.RPDisplayName = d.Config.RPID
	}
	wa, err := gowebauthn.New(&gowebauthn.Config{
		RPID:          d.Config.RPID,
		RPDisplayName: d.Config.RPDisplayName,
		RPOrigins:     d.Config.RPOrigins,
	})
	if err != nil {
		return nil, err
	}
	return &service{deps: d, wa: wa}, nil
}

// BeginRegistration genera las opciones de creación y guarda el challenge,
// reemplazando cualquier ceremonia previa del mismo admin.
func (s *service) BeginRegistration(ctx context.Context, adminID string) (*BeginResult, error) {
	user, err := s.loadUser(ctx, adminID)
	if err != nil {
		return nil, err
	}

	var opts []gowebauthn.RegistrationOption
	if len(user.creds) > 0 {
		opts = append(opts, gowebauthn.WithExclusions(gowebauthn.Credentials(user.creds).CredentialDescriptors()))
	}
	creation, session, err := s.wa.BeginRegistration(user, opts...)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	if err := s.deps.Challenges.Put(ctx, challenge.Entry{
		AdminID:     adminID,
		Challenge:   session.Challenge,
		SessionData: payload,
		ExpiresAt:   s.deps.Now().Add(s.deps.Config.ChallengeTTL),
	}); err != nil {
		return nil, common.MapRepo(err, nil)
	}
	return &BeginResult{Success: true, Options: creation}, nil
}

// FinishRegistration consume el challenge, valida la attestation y guarda
// la credencial. El admin queda con MFA habilitado.
func (s *service) FinishRegistration(ctx context.Context, adminID string, response []byte) (*FinishResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("webauthn"), logger.Op("FinishRegistration"), logger.AdminID(adminID))

	if len(response) == 0 {
		return nil, httperrors.ErrMissingFields
	}
	entry, err := s.deps.Challenges.Consume(ctx, adminID)
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return nil, httperrors.ErrChallengeNotFound
	case errors.Is(err, challenge.ErrExpired):
		return nil, httperrors.ErrChallengeExpired
	case err != nil:
		return nil, common.MapRepo(err, nil)
	}

	var session gowebauthn.SessionData
	if err := json.Unmarshal(entry.SessionData, &session); err != nil {
		return nil, httperrors.ErrInternalServerError.WithCause(err)
	}
	user, err := s.loadUser(ctx, adminID)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, httperrors.ErrBadRequest.WithDetail("respuesta WebAuthn inválida").WithCause(err)
	}
	cred, err := s.wa.CreateCredential(user, session, parsed)
	if err != nil {
		log.Info("attestation rejected", logger.Err(err))
		return nil, httperrors.ErrBadRequest.WithDetail("attestation rechazada").WithCause(err)
	}

	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}
	if err := s.deps.Store.WebAuthnCredentials().Create(ctx, &repository.WebAuthnCredential{
		ID:              cred.ID,
		AdminID:         adminID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		Transports:      transports,
	}); err != nil {
		return nil, common.MapRepo(err, nil)
	}

	enabled := true
	if err := s.deps.Store.Admins().Update(ctx, adminID, repository.UpdateAdminInput{MFAEnabled: &enabled}); err != nil {
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}

	log.Info("webauthn credential registered")
	return &FinishResult{Success: true, CredentialID: encodeID(cred.ID), MFAEnabled: true}, nil
}

func (s *service) ListCredentials(ctx context.Context, adminID string) ([]CredentialView, error) {
	creds, err := s.deps.Store.WebAuthnCredentials().ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, common.MapRepo(err, nil)
	}
	out := make([]CredentialView, 0, len(creds))
	for _, c := range creds {
		out = append(out, CredentialView{ID: encodeID(c.ID), Transports: c.Transports, CreatedAt: c.CreatedAt})
	}
	return out, nil
}

// DeleteCredential borra una credencial; sin credenciales el MFA se apaga.
func (s *service) DeleteCredential(ctx context.Context, adminID, credentialID string) error {
	id, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(credentialID))
	if err != nil {
		return httperrors.ErrBadRequest.WithDetail("credentialId inválido")
	}
	repo := s.deps.Store.WebAuthnCredentials()
	if err := repo.Delete(ctx, adminID, id); err != nil {
		return common.MapRepo(err, nil)
	}
	left, err := repo.ListByAdmin(ctx, adminID)
	if err != nil {
		return common.MapRepo(err, nil)
	}
	if len(left) == 0 {
		disabled := false
		return common.MapRepo(s.deps.Store.Admins().Update(ctx, adminID, repository.UpdateAdminInput{MFAEnabled: &disabled}), httperrors.ErrAdminNotFound)
	}
	return nil
}

// ─── webauthn.User ───

type adminUser struct {
	admin *repository.Admin
	creds []gowebauthn.Credential
}

func (u *adminUser) WebAuthnID() []byte          { return []byte(u.admin.ID) }
func (u *adminUser) WebAuthnName() string        { return u.admin.Email }
func (u *adminUser) WebAuthnDisplayName() string { return strings.TrimSpace(u.admin.FirstName + " " + u.admin.LastName) }
func (u *adminUser) WebAuthnCredentials() []gowebauthn.Credential {
	return u.creds
}

func (s *service) loadUser(ctx context.Context, adminID string) (*adminUser, error) {
	a, err := s.deps.Store.Admins().GetByID(ctx, adminID)
	if err != nil {
		return nil, common.MapRepo(err, httperrors.ErrAdminNotFound)
	}
	stored, err := s.deps.Store.WebAuthnCredentials().ListByAdmin(ctx, adminID)
	if err != nil {
		return nil, common.MapRepo(err, nil)
	}
	creds := make([]gowebauthn.Credential, 0, len(stored))
	for _, c := range stored {
		transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
		for _, t := range c.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
		creds = append(creds, gowebauthn.Credential{
			ID:              c.ID,
			PublicKey:       c.PublicKey,
			AttestationType: c.AttestationType,
			Transport:       transports,
			Authenticator:   gowebauthn.Authenticator{AAGUID: c.AAGUID, SignCount: c.SignCount},
		})
	}
	return &adminUser{admin: a, creds: creds}, nil
}

func encodeID(id []byte) string { return base64.RawURLEncoding.EncodeToString(id) }
