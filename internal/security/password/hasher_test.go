package password

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Parámetros baratos para que los tests no tarden.
var fast = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1}

func TestHashVerify(t *testing.T) {
	h := NewHasher(fast)

	d, err := h.Hash("s3cret!")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(d, "$argon2id$v=19$m=8192,t=1,p=1$"))

	require.True(t, h.Verify("s3cret!", d))
	require.False(t, h.Verify("s3cret?", d))
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(fast)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHashEmpty(t *testing.T) {
	_, err := NewHasher(fast).Hash("")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerifyMalformed(t *testing.T) {
	h := NewHasher(fast)
	for _, d := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$",
	} {
		require.False(t, h.Verify("x", d), d)
	}
}

func TestDummyVerifyDoesNotPanic(t *testing.T) {
	h := NewHasher(fast)
	h.DummyVerify("x")
	h.DummyVerify("y")
}

func TestPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "common.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comunes\nPassword1!\n"), 0o600))

	p, err := Policy{MinLength: 8, RequireUpper: true, RequireDigit: true}.WithBlacklist(path)
	require.NoError(t, err)

	require.Empty(t, p.Validate("Correct9horse"))
	require.ElementsMatch(t, []string{"too_short", "missing_upper", "missing_digit"}, p.Validate("abc"))
	require.Contains(t, p.Validate("password1!"), "blacklisted")
}
