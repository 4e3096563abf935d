package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	b := &Bridge{deviceID: "b"}
	a := &Bridge{deviceID: "a"}

	assert.Nil(t, registry.Add(b))
	assert.Nil(t, registry.Add(a))

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].DeviceID())
	assert.Equal(t, "b", list[1].DeviceID())

	replacement := &Bridge{deviceID: "a"}
	assert.Same(t, a, registry.Add(replacement))

	assert.False(t, registry.Remove(a), "stale bridge must not evict its replacement")

	got, ok := registry.Get("a")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	assert.True(t, registry.Remove(replacement))
	assert.Equal(t, 1, registry.Len())
}
