package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPProviderConfig configures [HTTPProvider].
type HTTPProviderConfig struct {
	UserInfoURL       string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// HTTPProvider confirms external tokens by calling a user-info endpoint with
// the token as bearer credential. Outbound calls are throttled.
type HTTPProvider struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

type userInfo struct {
	ID      string `json:"id"`
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// NewHTTPProvider builds a provider. client may be nil.
func NewHTTPProvider(cfg HTTPProviderConfig, client *http.Client) (*HTTPProvider, error) {
	if cfg.UserInfoURL == "" {
		return nil, errors.New("verifier: user info url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPProvider{
		url:     cfg.UserInfoURL,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// GetExternalUserByToken implements [ExternalProvider].
func (p *HTTPProvider) GetExternalUserByToken(ctx context.Context, token string) (*ExternalUser, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, ErrExternalRejected
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrExternalUnavailable, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalUnavailable, err)
	}
	id := info.ID
	if id == "" {
		id = info.Subject
	}
	if id == "" {
		return nil, ErrExternalRejected
	}
	return &ExternalUser{ID: id, Email: info.Email}, nil
}
