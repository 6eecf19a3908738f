package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindNotFound, KindOf(ErrUserNotFound))
	require.Equal(t, KindGone, KindOf(ErrOTPExpired.WithDetail("x")))
	require.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
	require.Equal(t, Kind(""), KindOf(nil))

	wrapped := fmt.Errorf("ctx: %w", ErrInvalidAPIKey)
	require.True(t, IsKind(wrapped, KindBadRequest))
}

func TestWithCauseKeepsIdentity(t *testing.T) {
	cause := stderrors.New("smtp down")
	err := ErrMailDelivery.WithCause(cause)

	require.True(t, stderrors.Is(err, ErrMailDelivery))
	require.True(t, stderrors.Is(err, cause))
	require.Nil(t, ErrMailDelivery.Err, "el catálogo no debe mutar")
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrProjectNotFound.WithDetail("p-1"))

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "PROJECT_NOT_FOUND", body["code"])
	require.Equal(t, "p-1", body["detail"])
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrProviderExchange.WithDetail("status=400 body=secret"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret")
}
