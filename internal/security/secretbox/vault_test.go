package secretbox

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var fastKDF = KDFParams{Memory: 8 * 1024, Time: 1, Parallelism: 1}

func newTestVault(t *testing.T, master string) *Vault {
	t.Helper()
	v, err := NewVault(master, "tenantauth-test-salt", fastKDF)
	require.NoError(t, err)
	return v
}

func TestRoundTrip(t *testing.T) {
	v := newTestVault(t, "master")
	for _, msg := range []string{"", "hola mundo ✓", "client|secret|with|pipes"} {
		blob, err := v.Encrypt(msg)
		require.NoError(t, err)
		require.Equal(t, 1, strings.Count(blob, "|"))

		pt, err := v.Decrypt(blob)
		require.NoError(t, err)
		require.Equal(t, msg, pt)
	}
}

func TestFreshNonce(t *testing.T) {
	v := newTestVault(t, "master")
	a, err := v.Encrypt("x")
	require.NoError(t, err)
	b, err := v.Encrypt("x")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	blob, err := newTestVault(t, "master-a").Encrypt("secret")
	require.NoError(t, err)

	_, err = newTestVault(t, "master-b").Decrypt(blob)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptTampered(t *testing.T) {
	v := newTestVault(t, "master")
	blob, err := v.Encrypt("top secret")
	require.NoError(t, err)

	nonce, ctB64, _ := strings.Cut(blob, "|")
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	require.NoError(t, err)
	ct[0] ^= 0xFF

	_, err = v.Decrypt(nonce + "|" + base64.StdEncoding.EncodeToString(ct))
	require.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptMalformed(t *testing.T) {
	v := newTestVault(t, "master")
	shortNonce := base64.StdEncoding.EncodeToString([]byte("abc"))
	goodNonce := base64.StdEncoding.EncodeToString(make([]byte, 12))

	for _, blob := range []string{
		"",
		"sin-separador",
		"!!!|AAAA",
		shortNonce + "|AAAA",
		goodNonce + "|###",
		goodNonce + "|" + base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		_, err := v.Decrypt(blob)
		require.ErrorIs(t, err, ErrDecryption, blob)
	}
}

func TestNewVaultRejectsEmpty(t *testing.T) {
	_, err := NewVault("", "salt", fastKDF)
	require.Error(t, err)
	_, err = NewVault("master", "", fastKDF)
	require.Error(t, err)
}
