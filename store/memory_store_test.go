package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreContract(t *testing.T) {
	runStateStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()

	u, err := s.GetOrCreateUser(1)
	require.NoError(t, err)
	u.DownloadsUsed = 99

	fresh, err := s.GetOrCreateUser(1)
	require.NoError(t, err)
	assert.Zero(t, fresh.DownloadsUsed, "mutation without PutUser must not leak into the store")
}
