package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
)

// StationNormalizer decodes station packets into readings in the configured
// unit system.
type StationNormalizer struct {
	units  domain.UnitSystem
	logger *slog.Logger
}

// NewNormalizer creates a StationNormalizer.
func NewNormalizer(units domain.UnitSystem, logger *slog.Logger) *StationNormalizer {
	return &StationNormalizer{units: units, logger: logger}
}

// Normalize parses a raw packet into readings, computing derived metrics
// where the packet carries enough inputs.
func (n *StationNormalizer) Normalize(raw domain.RawPacket) ([]domain.Reading, error) {
	readings, err := domain.ParsePacket(raw, n.units)
	if err != nil {
		return nil, err
	}
	if len(readings) > 0 {
		n.logger.Debug("packet normalized",
			"source", raw.Source,
			"station", readings[0].Station,
			"readings", len(readings),
		)
	}
	return readings, nil
}
