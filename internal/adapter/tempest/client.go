package tempest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
)

// Client fetches station observations from the WeatherFlow REST API.
type Client struct {
	tokens     TokenSource
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// TokenSource supplies the API token and can refresh it after the server
// rejects one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// StaticTokenSource wraps a fixed personal access token. Refresh is a no-op
// error since a static token cannot be renewed.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.token, nil
}

func (s *StaticTokenSource) Refresh(_ context.Context) error {
	return fmt.Errorf("%w: static token cannot be refreshed", domain.ErrAuth)
}

// NewClient creates a REST client. The limiter guards against hammering the
// API when the poll interval is misconfigured; one request per second is far
// above anything a station poller needs.
func NewClient(tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://swd.weatherflow.com/swd/rest",
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:  logger,
	}
}

// StationObservation fetches the latest observation set for a station and
// returns the raw response body. 401 responses map to ErrAuth, 404 to
// ErrDeviceNotFound, everything else transport-shaped to ErrConnectivity.
func (c *Client) StationObservation(ctx context.Context, stationID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: obtain token: %v", domain.ErrAuth, err)
	}

	u := fmt.Sprintf("%s/observations/station/%s?%s",
		c.baseURL, url.PathEscape(stationID), url.Values{"token": {token}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: station observation request: %v", domain.ErrConnectivity, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", domain.ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: station %s", domain.ErrDeviceNotFound, stationID)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrConnectivity, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrConnectivity, err)
	}
	return body, nil
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}
