package jwt

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	ks, err := GenerateEd25519()
	require.NoError(t, err)
	return NewIssuer("tenantauth-test", ks)
}

func TestIssueVerifyAccess(t *testing.T) {
	iss := newTestIssuer(t)

	tok, exp, err := iss.IssueAccess(AccessClaims{
		Email:     "ana@example.com",
		FirstName: "Ana",
		Verified:  true,
		ProjectID: "p-1",
		RegisteredClaims: registered("u-1"),
	}, 30*time.Minute)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 2*time.Second)

	c, err := iss.VerifyAccess(tok)
	require.NoError(t, err)
	require.Equal(t, "u-1", c.Subject)
	require.Equal(t, "ana@example.com", c.Email)
	require.Equal(t, "p-1", c.ProjectID)
	require.Equal(t, RoleUser, c.Role)
	require.True(t, c.Verified)
	require.False(t, c.IsAdmin())
}

func TestVerifyAccessExpired(t *testing.T) {
	iss := newTestIssuer(t)
	iss.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err := iss.IssueAccess(AccessClaims{RegisteredClaims: registered("a-1"), Role: RoleAdmin}, 10*time.Minute)
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.VerifyAccess(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessWrongKey(t *testing.T) {
	tok, _, err := newTestIssuer(t).IssueAccess(AccessClaims{RegisteredClaims: registered("a-1")}, time.Minute)
	require.NoError(t, err)

	_, err = newTestIssuer(t).VerifyAccess(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessMalformed(t *testing.T) {
	iss := newTestIssuer(t)
	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := iss.VerifyAccess(tok)
		require.ErrorIs(t, err, ErrInvalidToken)
	}

	tok, _, err := iss.IssueAccess(AccessClaims{RegisteredClaims: registered("a-1")}, time.Minute)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")
	_, err = iss.VerifyAccess(parts[0] + "." + parts[1] + ".AAAA")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMagicLink(t *testing.T) {
	iss := newTestIssuer(t)
	tok, jti, err := iss.SignMagicLink("ana@example.com", "p-1", 10*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	ml, err := iss.VerifyMagicLink(tok)
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", ml.Email)
	require.Equal(t, "p-1", ml.ProjectID)
	require.Equal(t, jti, ml.JTI)
	require.False(t, ml.ExpiresAt.IsZero())

	// un access token no sirve como magic link
	access, _, err := iss.IssueAccess(AccessClaims{Email: "x@y.z", ProjectID: "p", RegisteredClaims: registered("u")}, time.Minute)
	require.NoError(t, err)
	_, err = iss.VerifyMagicLink(access)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateEd25519(t *testing.T) {
	a, err := GenerateEd25519()
	require.NoError(t, err)
	b, err := GenerateEd25519()
	require.NoError(t, err)

	require.Equal(t, a.Pub, a.Priv.Public())
	require.Equal(t, kidFor(a.Pub), a.KID)
	require.NotEqual(t, a.KID, b.KID)
}

func TestKeysPEMRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.pem")

	ks, err := LoadOrGenerate(path, true)
	require.NoError(t, err)

	again, err := LoadOrGenerate(path, false)
	require.NoError(t, err)
	require.Equal(t, ks.KID, again.KID)
	require.Equal(t, ks.Pub, again.Pub)
	require.Contains(t, string(again.JWKSJSON()), ks.KID)

	_, err = LoadOrGenerate(filepath.Join(t.TempDir(), "missing.pem"), false)
	require.Error(t, err)
}
