package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherDeterministic(t *testing.T) {
	h := New([]byte("salt-a"))
	k1, err := h.HashKey([]byte("hello"))
	require.NoError(t, err)
	k2, err := h.HashKey([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, k1.Equal(k2))
}

func TestHasherDiffersBySalt(t *testing.T) {
	ka, err := New([]byte("salt-a")).HashKey([]byte("hello"))
	require.NoError(t, err)
	kb, err := New([]byte("salt-b")).HashKey([]byte("hello"))
	require.NoError(t, err)
	assert.False(t, ka.Equal(kb))
}

func TestHasherDiffersByKey(t *testing.T) {
	h := New([]byte("salt-a"))
	k1, err := h.HashKey([]byte("hello"))
	require.NoError(t, err)
	k2, err := h.HashKey([]byte("world"))
	require.NoError(t, err)
	assert.False(t, k1.Equal(k2))
}
