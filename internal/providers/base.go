package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const maxResponseSize = 1 << 20

// OAuth2Exchange canjea el code con x/oauth2 usando client (con su timeout).
// Un *oauth2.RetrieveError se convierte en *ExchangeError.
func OAuth2Exchange(ctx context.Context, name string, conf *oauth2.Config, client *http.Client, code string) (*TokenSet, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, &ExchangeError{
				Provider: name,
				Endpoint: conf.Endpoint.TokenURL,
				Status:   status,
				Body:     truncate(string(re.Body), 512),
			}
		}
		return nil, fmt.Errorf("%s: token exchange: %w", name, err)
	}
	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}, nil
}

// GetJSON hace un GET autenticado con bearer y decodifica la respuesta en out.
func GetJSON(ctx context.Context, name string, client *http.Client, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", name, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ExchangeError{Provider: name, Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}

// Pick devuelve v o, si está vacío, def. Para endpoints overrideables.
func Pick(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
