package domain_test

import (
	"testing"

	"github.com/couchcryptid/tempest-station-bridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SingleInstance(t *testing.T) {
	r := domain.NewRegistry()

	require.NoError(t, r.Register("local:0.0.0.0:50222"))

	err := r.Register("local:0.0.0.0:50222")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyConfigured)

	// A different station key is independent.
	assert.NoError(t, r.Register("cloud:41299"))
}

func TestRegistry_Release(t *testing.T) {
	r := domain.NewRegistry()

	require.NoError(t, r.Register("cloud:41299"))
	r.Release("cloud:41299")
	assert.NoError(t, r.Register("cloud:41299"))
}
