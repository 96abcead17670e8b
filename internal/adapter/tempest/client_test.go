package tempest_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/adapter/tempest"
	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const observationBody = `{"station_id":41299,"obs":[{"timestamp":1588948614,"air_temperature":20.5,"relative_humidity":55}]}`

// refreshingTokenSource rotates to a good token on Refresh.
type refreshingTokenSource struct {
	current  string
	next     string
	refreshs atomic.Int64
}

func (s *refreshingTokenSource) Token(_ context.Context) (string, error) {
	return s.current, nil
}

func (s *refreshingTokenSource) Refresh(_ context.Context) error {
	s.refreshs.Add(1)
	s.current = s.next
	return nil
}

func newClient(t *testing.T, ts tempest.TokenSource, serverURL string) *tempest.Client {
	t.Helper()
	c := tempest.NewClient(ts, 5*time.Second, slog.Default())
	c.SetBaseURL(serverURL)
	return c
}

func TestClient_StationObservation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observations/station/41299", r.URL.Path)
		assert.Equal(t, "good-token", r.URL.Query().Get("token"))
		w.Write([]byte(observationBody))
	}))
	defer server.Close()

	c := newClient(t, tempest.NewStaticTokenSource("good-token"), server.URL)

	body, err := c.StationObservation(context.Background(), "41299")
	require.NoError(t, err)
	assert.JSONEq(t, observationBody, string(body))
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: domain.ErrAuth},
		{name: "forbidden", status: http.StatusForbidden, wantErr: domain.ErrAuth},
		{name: "station missing", status: http.StatusNotFound, wantErr: domain.ErrDeviceNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrConnectivity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := newClient(t, tempest.NewStaticTokenSource("t"), server.URL)

			_, err := c.StationObservation(context.Background(), "41299")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	c := newClient(t, tempest.NewStaticTokenSource("t"), "http://127.0.0.1:1")

	_, err := c.StationObservation(context.Background(), "41299")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestPoller_FirstPollIsImmediate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(observationBody))
	}))
	defer server.Close()

	c := newClient(t, tempest.NewStaticTokenSource("t"), server.URL)
	p := tempest.NewPoller(c, "41299", time.Hour, 3, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pkt, err := p.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCloud, pkt.Source)
	assert.JSONEq(t, observationBody, string(pkt.Payload))
}

func TestPoller_WaitsOutInterval(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(observationBody))
	}))
	defer server.Close()

	c := newClient(t, tempest.NewStaticTokenSource("t"), server.URL)
	p := tempest.NewPoller(c, "41299", 50*time.Millisecond, 3, slog.Default(), observability.NewMetricsForTesting())

	ctx := context.Background()
	start := time.Now()

	_, err := p.Receive(ctx)
	require.NoError(t, err)
	_, err = p.Receive(ctx)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
}

func TestPoller_RefreshesRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(observationBody))
	}))
	defer server.Close()

	tokens := &refreshingTokenSource{current: "stale", next: "fresh"}
	c := newClient(t, tokens, server.URL)
	p := tempest.NewPoller(c, "41299", time.Hour, 3, slog.Default(), observability.NewMetricsForTesting())

	pkt, err := p.Receive(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, observationBody, string(pkt.Payload))
	assert.EqualValues(t, 1, tokens.refreshs.Load())
}

func TestPoller_GivesUpAfterBoundedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &refreshingTokenSource{current: "stale", next: "still-stale"}
	c := newClient(t, tokens, server.URL)
	p := tempest.NewPoller(c, "41299", time.Hour, 2, slog.Default(), observability.NewMetricsForTesting())

	start := time.Now()
	_, err := p.Receive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.EqualValues(t, 2, tokens.refreshs.Load())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond,
		"second refresh attempt must wait out the backoff")
}

func TestPoller_BackoffIsCancellable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &refreshingTokenSource{current: "stale", next: "still-stale"}
	c := newClient(t, tokens, server.URL)
	p := tempest.NewPoller(c, "41299", time.Hour, 10, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	_, err := p.Receive(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoller_StaticTokenFailsFast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newClient(t, tempest.NewStaticTokenSource("revoked"), server.URL)
	p := tempest.NewPoller(c, "41299", time.Hour, 3, slog.Default(), observability.NewMetricsForTesting())

	_, err := p.Receive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuth)
}
