package publish

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/couchcryptid/tempest-station-bridge/internal/observability"
)

// EntityState is the last known state of one entity (one reading name on one
// station).
type EntityState struct {
	ID        string         `json:"id"`
	Reading   domain.Reading `json:"reading"`
	UpdatedAt time.Time      `json:"updated_at"`
	Available bool           `json:"available"`
}

// Sink receives entity state changes. Implementations must be idempotent:
// the store only calls them when state actually changed, but restarts replay
// the current state.
type Sink interface {
	PublishState(ctx context.Context, state EntityState) error
	PublishAvailability(ctx context.Context, entityID string, available bool) error
}

// Store tracks last-known entity state, suppresses no-op updates, and marks
// entities unavailable once they go stale. It implements pipeline.Publisher.
type Store struct {
	sinks   []Sink
	expiry  time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	entities map[string]*EntityState
}

// NewStore creates a Store publishing to the given sinks. expiry is how long
// an entity may go without a fresh reading before it is marked unavailable;
// zero disables expiry.
func NewStore(sinks []Sink, expiry time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{
		sinks:    sinks,
		expiry:   expiry,
		logger:   logger,
		metrics:  metrics,
		entities: make(map[string]*EntityState),
	}
}

// EntityID derives the stable identifier for a reading: station serial plus
// reading name, lowercased.
func EntityID(r domain.Reading) string {
	return strings.ToLower(r.Station + "_" + string(r.Name))
}

// Publish applies a batch of readings. Unchanged values are suppressed;
// changed ones fan out to every sink. State is committed only after every
// sink has accepted it, so a failed batch stays dirty and the retried (or
// next identical) batch still delivers.
func (s *Store) Publish(ctx context.Context, readings []domain.Reading) error {
	now := clock.Now()

	for _, r := range readings {
		id := EntityID(r)

		s.mu.Lock()
		prev, known := s.entities[id]
		wasAvailable := known && prev.Available
		changed := !known || prev.Reading.Value != r.Value || prev.Reading.Text != r.Text || !wasAvailable
		if !changed {
			prev.UpdatedAt = now
		}
		s.mu.Unlock()

		if !changed {
			s.metrics.UpdatesSkipped.Inc()
			continue
		}

		next := EntityState{ID: id, Reading: r, UpdatedAt: now, Available: true}
		for _, sink := range s.sinks {
			if err := sink.PublishState(ctx, next); err != nil {
				return fmt.Errorf("publish %s: %w", id, err)
			}
			if !wasAvailable {
				if err := sink.PublishAvailability(ctx, id, true); err != nil {
					return fmt.Errorf("publish availability %s: %w", id, err)
				}
			}
		}

		s.mu.Lock()
		s.entities[id] = &next
		s.metrics.EntitiesTracked.Set(float64(len(s.entities)))
		s.mu.Unlock()
	}

	return nil
}

// Snapshot returns the current entity states sorted by ID, for the readings
// endpoint.
func (s *Store) Snapshot() []EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntityState, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WatchExpiry periodically sweeps for stale entities until the context is
// cancelled. No-op when expiry is disabled.
func (s *Store) WatchExpiry(ctx context.Context) {
	if s.expiry <= 0 {
		return
	}

	interval := s.expiry / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

// sweep marks entities whose last update is older than the expiry window as
// unavailable and notifies the sinks once per transition.
func (s *Store) sweep(ctx context.Context) {
	now := clock.Now()

	s.mu.Lock()
	var expired []string
	unavailable := 0
	for id, e := range s.entities {
		if !e.Available {
			unavailable++
			continue
		}
		if now.Sub(e.UpdatedAt) > s.expiry {
			e.Available = false
			expired = append(expired, id)
			unavailable++
		}
	}
	s.metrics.EntitiesUnavailable.Set(float64(unavailable))
	s.mu.Unlock()

	for _, id := range expired {
		s.logger.Warn("entity expired", "entity", id, "window", s.expiry)
		for _, sink := range s.sinks {
			if err := sink.PublishAvailability(ctx, id, false); err != nil {
				s.logger.Error("publish availability failed", "entity", id, "error", err)
			}
		}
	}
}
