package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/observability"
)

// Source produces raw station packets, blocking until one arrives or the
// context is cancelled.
type Source interface {
	Receive(ctx context.Context) (domain.RawPacket, error)
}

// Normalizer converts a raw packet into zero or more readings.
type Normalizer interface {
	Normalize(raw domain.RawPacket) ([]domain.Reading, error)
}

// Publisher pushes normalized readings to the state store and sinks.
type Publisher interface {
	Publish(ctx context.Context, readings []domain.Reading) error
}

// Pipeline orchestrates the receive-normalize-publish loop.
type Pipeline struct {
	source     Source
	normalizer Normalizer
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(s Source, n Normalizer, p Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:     s,
		normalizer: n,
		publisher:  p,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one
// reading, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published any readings yet")
	}
	return nil
}

// Run executes the ingestion loop until the context is cancelled or the
// source fails with a persistent error. Malformed packets are logged and
// dropped; transient receive and publish failures retry with backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		stop, err := p.processPacket(ctx, &backoff, maxBackoff)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// processPacket runs one receive-normalize-publish cycle. Returns stop=true
// when the pipeline should exit cleanly, or a non-nil error for persistent
// failures the caller cannot retry past.
func (p *Pipeline) processPacket(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) (bool, error) {
	raw, err := p.source.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		if isPersistent(err) {
			p.logger.Error("source failed", "error", err)
			return true, err
		}
		p.logger.Error("receive failed", "error", err)
		return !p.backoffOrStop(ctx, backoff, maxBackoff), nil
	}

	p.metrics.PacketsReceived.WithLabelValues(string(raw.Source)).Inc()

	readings, err := p.normalizer.Normalize(raw)
	if err != nil {
		p.logger.Warn("malformed packet, dropping", "error", err, "source", raw.Source)
		p.metrics.ParseErrors.Inc()
		return false, nil
	}

	if len(readings) == 0 {
		return false, nil
	}

	if err := p.publisher.Publish(ctx, readings); err != nil {
		if ctx.Err() != nil {
			return true, nil
		}
		p.logger.Error("publish failed", "error", err, "readings", len(readings))
		p.metrics.PublishErrors.Inc()
		return !p.backoffOrStop(ctx, backoff, maxBackoff), nil
	}

	p.metrics.ReadingsPublished.Add(float64(len(readings)))
	*backoff = 200 * time.Millisecond
	p.ready.Store(true)
	return false, nil
}

// isPersistent reports whether an error cannot be resolved by retrying.
func isPersistent(err error) bool {
	return errors.Is(err, domain.ErrAuth) ||
		errors.Is(err, domain.ErrDeviceNotFound) ||
		errors.Is(err, domain.ErrAlreadyConfigured)
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
