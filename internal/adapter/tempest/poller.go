package tempest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/observability"
)

// Backoff between token refresh attempts: start at 200ms, double each retry,
// cap at 5s.
const (
	authBackoffInitial = 200 * time.Millisecond
	authBackoffMax     = 5 * time.Second
)

// Poller periodically fetches station observations and surfaces them as raw
// packets. The first Receive fires immediately so the service reports state
// right after startup; later calls wait out the poll interval.
type Poller struct {
	client      *Client
	stationID   string
	interval    time.Duration
	maxAuthTrys int
	logger      *slog.Logger
	metrics     *observability.Metrics

	lastPoll time.Time
}

// NewPoller creates a Poller for one station. maxAuthRetries bounds how many
// token refreshes are attempted before a 401 becomes a persistent failure.
func NewPoller(client *Client, stationID string, interval time.Duration, maxAuthRetries int, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		client:      client,
		stationID:   stationID,
		interval:    interval,
		maxAuthTrys: maxAuthRetries,
		logger:      logger,
		metrics:     metrics,
	}
}

// Receive waits for the next poll slot, fetches the station observation, and
// wraps it in a RawPacket. Auth failures trigger a bounded refresh-and-retry
// cycle before giving up with ErrAuth.
func (p *Poller) Receive(ctx context.Context) (domain.RawPacket, error) {
	if err := p.waitForSlot(ctx); err != nil {
		return domain.RawPacket{}, err
	}
	p.lastPoll = time.Now()

	start := time.Now()
	body, err := p.fetchWithReauth(ctx)
	if err != nil {
		return domain.RawPacket{}, err
	}
	p.metrics.PollDuration.Observe(time.Since(start).Seconds())

	return domain.RawPacket{
		Source:     domain.SourceCloud,
		Payload:    body,
		ReceivedAt: time.Now().UTC(),
	}, nil
}

func (p *Poller) waitForSlot(ctx context.Context) error {
	if p.lastPoll.IsZero() {
		return ctx.Err()
	}

	wait := p.interval - time.Since(p.lastPoll)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Poller) fetchWithReauth(ctx context.Context) ([]byte, error) {
	body, err := p.client.StationObservation(ctx, p.stationID)
	if err == nil || !errors.Is(err, domain.ErrAuth) {
		return body, err
	}

	backoff := authBackoffInitial
	for attempt := 1; attempt <= p.maxAuthTrys; attempt++ {
		if attempt > 1 {
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > authBackoffMax {
				backoff = authBackoffMax
			}
		}

		p.logger.Warn("token rejected, refreshing", "attempt", attempt)
		p.metrics.AuthRetries.Inc()

		if rerr := p.client.tokens.Refresh(ctx); rerr != nil {
			return nil, fmt.Errorf("refresh after rejection: %w", rerr)
		}

		body, err = p.client.StationObservation(ctx, p.stationID)
		if err == nil || !errors.Is(err, domain.ErrAuth) {
			return body, err
		}
	}

	return nil, fmt.Errorf("token still rejected after %d refreshes: %w", p.maxAuthTrys, err)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
