package webauthn

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tenantauth/internal/cache"
	"github.com/dropDatabas3/tenantauth/internal/challenge"
	"github.com/dropDatabas3/tenantauth/internal/domain/repository"
	httperrors "github.com/dropDatabas3/tenantauth/internal/http/errors"
	"github.com/dropDatabas3/tenantauth/internal/store/memory"
)

func newService(t *testing.T, chal challenge.Store, db *memory.DB, now func() time.Time) Service {
	t.Helper()
	svc, err := NewService(Deps{
		Store:      db,
		Challenges: chal,
		Config:     Config{RPID: "localhost", RPDisplayName: "tenantauth", RPOrigins: []string{"http://localhost:3000"}},
		Now:        now,
	})
	require.NoError(t, err)
	return svc
}

func seedAdmin(t *testing.T, db *memory.DB) string {
	t.Helper()
	require.NoError(t, db.Admins().Create(context.Background(), &repository.Admin{ID: "adm-1", Email: "a@x.com", FirstName: "Ada"}))
	return "adm-1"
}

func TestBeginRegistrationStoresOneChallengePerAdmin(t *testing.T) {
	db := memory.New()
	adminID := seedAdmin(t, db)
	svc := newService(t, challenge.NewRepoStore(db.Challenges()), db, nil)
	ctx := context.Background()

	first, err := svc.BeginRegistration(ctx, adminID)
	require.NoError(t, err)
	second, err := svc.BeginRegistration(ctx, adminID)
	require.NoError(t, err)

	stored, err := db.Challenges().Get(ctx, adminID)
	require.NoError(t, err)
	require.Equal(t, second.Options.Response.Challenge.String(), stored.Challenge)
	require.NotEqual(t, first.Options.Response.Challenge.String(), stored.Challenge)

	raw, err := json.Marshal(second.Options)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"id":"localhost"`)
	require.Contains(t, string(raw), `"name":"tenantauth"`)
}

func TestFinishRegistrationChallengeErrors(t *testing.T) {
	db := memory.New()
	adminID := seedAdmin(t, db)
	now := time.Now()
	chal := challenge.NewCacheStore(cache.NewMemory("test"))
	svc := newService(t, chal, db, func() time.Time { return now })
	ctx := context.Background()

	_, err := svc.FinishRegistration(ctx, adminID, []byte(`{}`))
	require.Equal(t, httperrors.KindNotFound, httperrors.KindOf(err))

	_, err = svc.BeginRegistration(ctx, adminID)
	require.NoError(t, err)
	_, err = svc.FinishRegistration(ctx, adminID, []byte(`{"garbage":true}`))
	require.Equal(t, httperrors.KindBadRequest, httperrors.KindOf(err))

	// el intento fallido consumió el challenge
	_, err = svc.FinishRegistration(ctx, adminID, []byte(`{"garbage":true}`))
	require.Equal(t, httperrors.KindNotFound, httperrors.KindOf(err))
}

func TestFinishRegistrationExpiredChallengeIsGone(t *testing.T) {
	db := memory.New()
	adminID := seedAdmin(t, db)
	require.NoError(t, db.Challenges().Upsert(context.Background(), &repository.Challenge{
		AdminID: adminID, Challenge: "c", SessionData: []byte(`{}`), ExpiresAt: time.Now().Add(-time.Minute),
	}))
	svc := newService(t, challenge.NewRepoStore(db.Challenges()), db, nil)

	_, err := svc.FinishRegistration(context.Background(), adminID, []byte(`{}`))
	require.Equal(t, httperrors.KindGone, httperrors.KindOf(err))
}

func TestDeleteLastCredentialDisablesMFA(t *testing.T) {
	db := memory.New()
	adminID := seedAdmin(t, db)
	ctx := context.Background()
	enabled := true
	require.NoError(t, db.Admins().Update(ctx, adminID, repository.UpdateAdminInput{MFAEnabled: &enabled}))
	require.NoError(t, db.WebAuthnCredentials().Create(ctx, &repository.WebAuthnCredential{ID: []byte{1, 2, 3}, AdminID: adminID, PublicKey: []byte{9}}))

	svc := newService(t, challenge.NewRepoStore(db.Challenges()), db, nil)
	list, err := svc.ListCredentials(ctx, adminID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.DeleteCredential(ctx, adminID, list[0].ID))
	a, err := db.Admins().GetByID(ctx, adminID)
	require.NoError(t, err)
	require.False(t, a.MFAEnabled)

	require.Equal(t, httperrors.KindNotFound, httperrors.KindOf(svc.DeleteCredential(ctx, adminID, list[0].ID)))
}
