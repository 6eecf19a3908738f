// Package memory implementa los repositorios en memoria. Lo usan el modo dev
// y los tests de servicios. Un único mutex protege todo el estado.
package memory

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/store"
)

func init() {
	store.RegisterAdapter(adapter{})
}

type adapter struct{}

func (adapter) Name() string { return "memory" }

func (adapter) Connect(context.Context, store.Config) (store.Connection, error) {
	return New(), nil
}

type membershipKey struct{ userID, projectID string }
type providerKey struct{ projectID, provider string }

// DB es el estado completo en memoria.
type DB struct {
	mu  sync.Mutex
	now func() time.Time

	admins      map[string]repository.Admin
	users       map[string]repository.User
	memberships map[membershipKey]repository.Membership
	projects    map[string]repository.Project
	providers   map[providerKey]repository.OAuthProviderConfig
	states      map[string]repository.OAuthState
	otps        map[string]repository.OTP
	challenges  map[string]repository.Challenge
	credentials []repository.WebAuthnCredential
	tokens      map[string]repository.RefreshToken
}

// New crea una base vacía.
func New() *DB {
	return &DB{
		now:         time.Now,
		admins:      map[string]repository.Admin{},
		users:       map[string]repository.User{},
		memberships: map[membershipKey]repository.Membership{},
		projects:    map[string]repository.Project{},
		providers:   map[providerKey]repository.OAuthProviderConfig{},
		states:      map[string]repository.OAuthState{},
		otps:        map[string]repository.OTP{},
		challenges:  map[string]repository.Challenge{},
		tokens:      map[string]repository.RefreshToken{},
	}
}

func (db *DB) Name() string                 { return "memory" }
func (db *DB) Ping(context.Context) error   { return nil }
func (db *DB) Close() error                 { return nil }

func (db *DB) Admins() repository.AdminRepository                 { return adminRepo{db} }
func (db *DB) Users() repository.UserRepository                   { return userRepo{db} }
func (db *DB) Projects() repository.ProjectRepository             { return projectRepo{db} }
func (db *DB) OAuthProviders() repository.OAuthProviderRepository { return providerRepo{db} }
func (db *DB) OAuthStates() repository.OAuthStateRepository       { return stateRepo{db} }
func (db *DB) OTPs() repository.OTPRepository                     { return otpRepo{db} }
func (db *DB) Challenges() repository.ChallengeRepository         { return challengeRepo{db} }
func (db *DB) WebAuthnCredentials() repository.WebAuthnCredentialRepository {
	return credentialRepo{db}
}
func (db *DB) RefreshTokens() repository.RefreshTokenRepository { return tokenRepo{db} }

// ─── Admins ───

type adminRepo struct{ db *DB }

func (r adminRepo) Create(_ context.Context, a *repository.Admin) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.admins {
		if strings.EqualFold(x.Email, a.Email) {
			return repository.ErrConflict
		}
	}
	now := r.db.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.db.admins[a.ID] = *a
	return nil
}

func (r adminRepo) GetByID(_ context.Context, id string) (*repository.Admin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r adminRepo) GetByEmail(_ context.Context, email string) (*repository.Admin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r adminRepo) Update(_ context.Context, id string, in repository.UpdateAdminInput) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.admins[id]
	if !ok {
		return repository.ErrNotFound
	}
	if in.Email != nil {
		for _, x := range r.db.admins {
			if x.ID != id && strings.EqualFold(x.Email, *in.Email) {
				return repository.ErrConflict
			}
		}
		a.Email = *in.Email
	}
	setIf(&a.FirstName, in.FirstName)
	setIf(&a.LastName, in.LastName)
	setIf(&a.PasswordHash, in.PasswordHash)
	setIf(&a.Verified, in.Verified)
	setIf(&a.MFAEnabled, in.MFAEnabled)
	if in.LastLoginAt != nil {
		t := *in.LastLoginAt
		a.LastLoginAt = &t
	}
	a.UpdatedAt = r.db.now()
	r.db.admins[id] = a
	return nil
}

func (r adminRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.admins[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.admins, id)
	delete(r.db.challenges, id)
	for pid, p := range r.db.projects {
		if p.AdminID == id {
			r.db.deleteProjectLocked(pid)
		}
	}
	kept := r.db.credentials[:0]
	for _, c := range r.db.credentials {
		if c.AdminID != id {
			kept = append(kept, c)
		}
	}
	r.db.credentials = kept
	for tid, t := range r.db.tokens {
		if t.OwnerKind == repository.OwnerAdmin && t.OwnerID == id {
			delete(r.db.tokens, tid)
		}
	}
	return nil
}

// ─── Users ───

type userRepo struct{ db *DB }

func (r userRepo) Create(_ context.Context, u *repository.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.users {
		if strings.EqualFold(x.Email, u.Email) {
			return repository.ErrConflict
		}
	}
	u.CreatedAt = r.db.now()
	r.db.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.users, id)
	for k := range r.db.memberships {
		if k.userID == id {
			delete(r.db.memberships, k)
		}
	}
	for tid, t := range r.db.tokens {
		if t.OwnerKind == repository.OwnerUser && t.OwnerID == id {
			delete(r.db.tokens, tid)
		}
	}
	return nil
}

func (r userRepo) CreateMembership(_ context.Context, m *repository.Membership) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := membershipKey{m.UserID, m.ProjectID}
	if _, ok := r.db.memberships[k]; ok {
		return repository.ErrConflict
	}
	if _, ok := r.db.users[m.UserID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.db.projects[m.ProjectID]; !ok {
		return repository.ErrNotFound
	}
	now := r.db.now()
	m.CreatedAt, m.UpdatedAt = now, now
	r.db.memberships[k] = *m
	return nil
}

func (r userRepo) GetMembership(_ context.Context, userID, projectID string) (*repository.Membership, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.memberships[membershipKey{userID, projectID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r userRepo) UpdateMembership(_ context.Context, userID, projectID string, in repository.UpdateMembershipInput) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := membershipKey{userID, projectID}
	m, ok := r.db.memberships[k]
	if !ok {
		return repository.ErrNotFound
	}
	setIf(&m.FirstName, in.FirstName)
	setIf(&m.LastName, in.LastName)
	setIf(&m.Role, in.Role)
	setIf(&m.Verified, in.Verified)
	setIf(&m.PasswordHash, in.PasswordHash)
	if in.LastLoginAt != nil {
		t := *in.LastLoginAt
		m.LastLoginAt = &t
	}
	m.UpdatedAt = r.db.now()
	r.db.memberships[k] = m
	return nil
}

// ─── Projects ───

type projectRepo struct{ db *DB }

func (r projectRepo) Create(_ context.Context, p *repository.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.admins[p.AdminID]; !ok {
		return repository.ErrNotFound
	}
	for _, x := range r.db.projects {
		if (x.AdminID == p.AdminID && x.Name == p.Name) || x.ClientKey == p.ClientKey {
			return repository.ErrConflict
		}
	}
	now := r.db.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.db.projects[p.ID] = *p
	return nil
}

func (r projectRepo) GetByID(_ context.Context, id string) (*repository.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r projectRepo) GetByClientKey(_ context.Context, clientKey string) (*repository.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, p := range r.db.projects {
		if p.ClientKey == clientKey {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r projectRepo) ListByAdmin(_ context.Context, adminID string) ([]repository.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []repository.Project
	for _, p := range r.db.projects {
		if p.AdminID == adminID {
			out = append(out, p)
		}
	}
	sortBy(out, func(a, b repository.Project) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return out, nil
}

func (r projectRepo) UpdateAPIKeyHash(_ context.Context, id, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.projects[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.APIKeyHash = hash
	p.UpdatedAt = r.db.now()
	r.db.projects[id] = p
	return nil
}

func (r projectRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.projects[id]; !ok {
		return repository.ErrNotFound
	}
	r.db.deleteProjectLocked(id)
	return nil
}

func (db *DB) deleteProjectLocked(id string) {
	delete(db.projects, id)
	for k := range db.memberships {
		if k.projectID == id {
			delete(db.memberships, k)
		}
	}
	for k := range db.providers {
		if k.projectID == id {
			delete(db.providers, k)
		}
	}
	for h, s := range db.states {
		if s.ProjectID == id {
			delete(db.states, h)
		}
	}
	for tid, t := range db.tokens {
		if t.ProjectID == id {
			delete(db.tokens, tid)
		}
	}
}

// ─── OAuth ───

type providerRepo struct{ db *DB }

func (r providerRepo) Upsert(_ context.Context, c *repository.OAuthProviderConfig) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.projects[c.ProjectID]; !ok {
		return repository.ErrNotFound
	}
	k := providerKey{c.ProjectID, c.Provider}
	now := r.db.now()
	if prev, ok := r.db.providers[k]; ok {
		c.ID, c.CreatedAt = prev.ID, prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.db.providers[k] = *c
	return nil
}

func (r providerRepo) Get(_ context.Context, projectID, provider string) (*repository.OAuthProviderConfig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.providers[providerKey{projectID, provider}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r providerRepo) ListByProject(_ context.Context, projectID string) ([]repository.OAuthProviderConfig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []repository.OAuthProviderConfig
	for k, c := range r.db.providers {
		if k.projectID == projectID {
			out = append(out, c)
		}
	}
	sortBy(out, func(a, b repository.OAuthProviderConfig) bool { return a.Provider < b.Provider })
	return out, nil
}

func (r providerRepo) Delete(_ context.Context, projectID, provider string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := providerKey{projectID, provider}
	if _, ok := r.db.providers[k]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.providers, k)
	return nil
}

type stateRepo struct{ db *DB }

func (r stateRepo) Create(_ context.Context, s *repository.OAuthState) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.states[s.StateHash]; ok {
		return repository.ErrConflict
	}
	s.CreatedAt = r.db.now()
	r.db.states[s.StateHash] = *s
	return nil
}

func (r stateRepo) Take(_ context.Context, stateHash string) (*repository.OAuthState, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.states[stateHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.db.states, stateHash)
	return &s, nil
}

func (r stateRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for h, s := range r.db.states {
		if s.ExpiresAt.Before(now) {
			delete(r.db.states, h)
			n++
		}
	}
	return n, nil
}

// ─── OTP ───

type otpRepo struct{ db *DB }

func (r otpRepo) Get(_ context.Context, email string) (*repository.OTP, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.otps[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r otpRepo) Upsert(_ context.Context, o *repository.OTP) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := strings.ToLower(o.Email)
	now := r.db.now()
	if prev, ok := r.db.otps[k]; ok {
		o.CreatedAt = prev.CreatedAt
	} else {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	r.db.otps[k] = *o
	return nil
}

func (r otpRepo) Delete(_ context.Context, email string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := strings.ToLower(email)
	if _, ok := r.db.otps[k]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.otps, k)
	return nil
}

func (r otpRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for k, o := range r.db.otps {
		if o.ExpiresAt.Before(now) {
			delete(r.db.otps, k)
			n++
		}
	}
	return n, nil
}

// ─── WebAuthn ───

type challengeRepo struct{ db *DB }

func (r challengeRepo) Upsert(_ context.Context, c *repository.Challenge) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.admins[c.AdminID]; !ok {
		return repository.ErrNotFound
	}
	c.CreatedAt = r.db.now()
	r.db.challenges[c.AdminID] = *c
	return nil
}

func (r challengeRepo) Get(_ context.Context, adminID string) (*repository.Challenge, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.challenges[adminID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r challengeRepo) Delete(_ context.Context, adminID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.challenges[adminID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.db.challenges, adminID)
	return nil
}

type credentialRepo struct{ db *DB }

func (r credentialRepo) Create(_ context.Context, c *repository.WebAuthnCredential) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.credentials {
		if bytes.Equal(x.ID, c.ID) {
			return repository.ErrConflict
		}
	}
	c.CreatedAt = r.db.now()
	r.db.credentials = append(r.db.credentials, *c)
	return nil
}

func (r credentialRepo) ListByAdmin(_ context.Context, adminID string) ([]repository.WebAuthnCredential, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []repository.WebAuthnCredential
	for _, c := range r.db.credentials {
		if c.AdminID == adminID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r credentialRepo) Delete(_ context.Context, adminID string, credentialID []byte) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, c := range r.db.credentials {
		if c.AdminID == adminID && bytes.Equal(c.ID, credentialID) {
			r.db.credentials = append(r.db.credentials[:i], r.db.credentials[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// ─── Refresh tokens ───

type tokenRepo struct{ db *DB }

func (r tokenRepo) Create(_ context.Context, t *repository.RefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, x := range r.db.tokens {
		if x.TokenHash == t.TokenHash {
			return repository.ErrConflict
		}
	}
	now := r.db.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if t.State == "" {
		t.State = repository.TokenActive
	}
	r.db.tokens[t.ID] = *t
	return nil
}

func (r tokenRepo) GetByHash(_ context.Context, hash string) (*repository.RefreshToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r tokenRepo) SetState(_ context.Context, id string, from, to repository.TokenState) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tokens[id]
	if !ok || t.State != from {
		return repository.ErrNotFound
	}
	t.State = to
	t.UpdatedAt = r.db.now()
	r.db.tokens[id] = t
	return nil
}

func (r tokenRepo) SetStateForOwner(_ context.Context, kind repository.OwnerKind, ownerID, projectID string, from, to repository.TokenState) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	now := r.db.now()
	for id, t := range r.db.tokens {
		if t.OwnerKind != kind || t.OwnerID != ownerID || t.State != from {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		t.State = to
		t.UpdatedAt = now
		r.db.tokens[id] = t
		n++
	}
	return n, nil
}

func (r tokenRepo) MarkExpired(_ context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, t := range r.db.tokens {
		if t.State == repository.TokenActive && t.ExpiresAt.Before(now) {
			t.State = repository.TokenExpired
			t.UpdatedAt = now
			r.db.tokens[id] = t
			n++
		}
	}
	return n, nil
}
