package domain

import "errors"

// Error taxonomy for the ingestion core. Adapters wrap these sentinels with
// %w so callers can classify failures via errors.Is without knowing the
// transport.
var (
	// ErrConnectivity covers bind failures and network errors. Handled
	// locally with bounded retry/backoff.
	ErrConnectivity = errors.New("connectivity error")

	// ErrAuth indicates an invalid or expired API token. Surfaces to the
	// operator after reauthentication attempts are exhausted.
	ErrAuth = errors.New("authentication failed")

	// ErrParse indicates a malformed packet. The packet is logged and
	// dropped; the listener keeps running.
	ErrParse = errors.New("malformed packet")

	// ErrDeviceNotFound indicates no hub broadcast was observed within the
	// discovery window. Treated as a setup abort.
	ErrDeviceNotFound = errors.New("no device broadcast observed")

	// ErrAlreadyConfigured is returned by the station registry when a second
	// instance is configured for the same station.
	ErrAlreadyConfigured = errors.New("station already configured")
)
