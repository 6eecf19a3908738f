package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stub struct{ cfg ProviderConfig }

func (s *stub) Name() string                  { return "stub" }
func (s *stub) AuthorizationEndpoint() string { return "" }
func (s *stub) TokenEndpoint() string         { return "" }
func (s *stub) UserInfoEndpoint() string      { return "" }
func (s *stub) Scopes() []string              { return nil }
func (s *stub) AuthorizationURL(string) string {
	return ""
}
func (s *stub) ExchangeCodeForTokens(context.Context, string) (*TokenSet, error) { return nil, nil }
func (s *stub) FetchUserInfo(context.Context, string) (*UserProfile, error)      { return nil, nil }

func TestRegistryCachesPerProjectAndCredentials(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register("stub", func(cfg ProviderConfig) (Provider, error) {
		calls++
		return &stub{cfg: cfg}, nil
	})
	require.True(t, r.Supports("stub"))
	require.False(t, r.Supports("facebook"))
	require.Equal(t, []string{"stub"}, r.Names())

	cfg := ProviderConfig{ClientID: "a", ClientSecret: "b"}
	p1, err := r.Get("p1", "stub", cfg)
	require.NoError(t, err)
	p2, err := r.Get("p1", "stub", cfg)
	require.NoError(t, err)
	require.Same(t, p1, p2)
	require.Equal(t, 1, calls)

	// credenciales nuevas → instancia nueva
	_, err = r.Get("p1", "stub", ProviderConfig{ClientID: "a", ClientSecret: "c"})
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	r.Invalidate("p1")
	_, err = r.Get("p1", "stub", cfg)
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	_, err = r.Get("p1", "facebook", cfg)
	require.Error(t, err)
}
