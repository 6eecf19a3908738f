package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromFallsBackToSingleton(t *testing.T) {
	require.NotNil(t, From(context.Background()))
	require.Same(t, L(), From(context.Background()))
}

func TestEnrichCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core))
	ctx = Enrich(ctx, ProjectID("p-1"))

	From(ctx).Info("hola", Email("ana@example.com"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	require.Equal(t, "p-1", fields["project_id"])
	require.Equal(t, "example.com", fields["email_domain"])
	require.NotContains(t, fields, "email")
}
