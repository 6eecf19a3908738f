package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	"github.com/dropDatabas3/tenantauth/internal/email"
	jwtx "github.com/dropDatabas3/tenantauth/internal/jwt"
	"github.com/dropDatabas3/tenantauth/internal/security/password"
	"github.com/dropDatabas3/tenantauth/internal/services/common"
	store "github.com/dropDatabas3/tenantauth/internal/store"
	"github.com/dropDatabas3/tenantauth/internal/store/memory"
)

var fastParams = password.Params{Memory: 1024, Time: 1, Parallelism: 1}

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) last(t *testing.T) email.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

// countingConn cuenta escrituras del flag verified sobre membresías.
type countingConn struct {
	store.Connection
	mu             sync.Mutex
	verifiedWrites int
}

func (c *countingConn) Users() repository.UserRepository {
	return &countingUsers{UserRepository: c.Connection.Users(), c: c}
}

type countingUsers struct {
	repository.UserRepository
	c *countingConn
}

func (u *countingUsers) UpdateMembership(ctx context.Context, userID, projectID string, in repository.UpdateMembershipInput) error {
	if in.Verified != nil {
		u.c.mu.Lock()
		u.c.verifiedWrites++
		u.c.mu.Unlock()
	}
	return u.UserRepository.UpdateMembership(ctx, userID, projectID, in)
}

type fixture struct {
	db      *memory.DB
	conn    *countingConn
	issuer  *jwtx.Issuer
	hasher  *password.Hasher
	mailer  *fakeMailer
	disp    *common.Dispatcher
	mgr     Manager
	now     time.Time
	adminID string
	project string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ks, err := jwtx.GenerateEd25519()
	require.NoError(t, err)

	f := &fixture{
		db:     memory.New(),
		issuer: jwtx.NewIssuer("tenantauth-test", ks),
		hasher: password.NewHasher(fastParams),
		mailer: &fakeMailer{},
		disp:   common.NewDispatcher(time.Second),
		now:    time.Now(),
	}
	f.conn = &countingConn{Connection: f.db}
	f.mgr = NewManager(Deps{
		Store:      f.conn,
		Issuer:     f.issuer,
		Hasher:     f.hasher,
		Policy:     password.Policy{MinLength: 8},
		Mailer:     f.mailer,
		Dispatcher: f.disp,
		Now:        func() time.Time { return f.now },
	})
	t.Cleanup(f.disp.Wait)

	ctx := context.Background()
	f.adminID = f.seedAdmin(t, "owner@x.com", "Passw0rd!")
	f.project = uuid.NewString()
	require.NoError(t, f.db.Projects().Create(ctx, &repository.Project{
		ID: f.project, AdminID: f.adminID, Name: "Acme", APIKeyHash: "x", ClientKey: "ck-" + f.project,
	}))
	return f
}

func (f *fixture) seedAdmin(t *testing.T, addr, pw string) string {
	t.Helper()
	hash, err := f.hasher.Hash(pw)
	require.NoError(t, err)
	id := uuid.NewString()
	require.NoError(t, f.db.Admins().Create(context.Background(), &repository.Admin{ID: id, Email: addr, PasswordHash: hash}))
	return id
}

func (f *fixture) register(t *testing.T, addr, pw string) *LoginResult {
	t.Helper()
	res, err := f.mgr.RegisterUser(context.Background(), RegisterUserInput{
		Email: addr, Password: pw, FirstName: "Ana", LastName: "Gómez", ProjectID: f.project,
	})
	require.NoError(t, err)
	return res
}

var errSMTP = errors.New("smtp: connection refused")
