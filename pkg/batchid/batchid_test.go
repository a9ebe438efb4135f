package batchid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormat(t *testing.T) {
	gen := NewGenerator("")
	pattern := regexp.MustCompile(`^BATCH_[0-9A-F]{8}$`)

	for i := 0; i < 100; i++ {
		id, err := gen.New()
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
	}
}

func TestNewCustomPrefix(t *testing.T) {
	gen := NewGenerator("LOT-")
	id, err := gen.New()
	require.NoError(t, err)
	assert.Regexp(t, `^LOT-[0-9A-F]{8}$`, id)
	assert.Equal(t, "LOT-", gen.Prefix())
}

func TestNewNoCollisions(t *testing.T) {
	gen := NewGenerator("")
	seen := make(map[string]struct{}, 10000)

	for i := 0; i < 10000; i++ {
		id, err := gen.New()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d generations", id, i)
		seen[id] = struct{}{}
	}
}
