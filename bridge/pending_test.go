package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afzaal-28/rn-inspector/protocol"
)

func TestPendingTable(t *testing.T) {
	t.Run("resolve delivers once", func(t *testing.T) {
		table := newPendingTable(100, 1000)

		id, ch, err := table.register()
		require.NoError(t, err)
		assert.Equal(t, int64(100), id)

		assert.True(t, table.resolve(&protocol.Message{ID: id, HasID: true}))
		assert.False(t, table.resolve(&protocol.Message{ID: id, HasID: true}))
		assert.False(t, table.cancel(id))

		msg := <-ch
		assert.Equal(t, id, msg.ID)
		assert.Equal(t, 0, table.len())
	})

	t.Run("cancel wins over a late response", func(t *testing.T) {
		table := newPendingTable(100, 1000)

		id, _, err := table.register()
		require.NoError(t, err)

		assert.True(t, table.cancel(id))
		assert.False(t, table.resolve(&protocol.Message{ID: id, HasID: true}))
	})

	t.Run("ids wrap and skip busy entries", func(t *testing.T) {
		table := newPendingTable(10, 13)

		first, _, err := table.register()
		require.NoError(t, err)

		second, _, err := table.register()
		require.NoError(t, err)

		third, _, err := table.register()
		require.NoError(t, err)

		assert.Equal(t, []int64{10, 11, 12}, []int64{first, second, third})

		_, _, err = table.register()
		require.ErrorIs(t, err, errIDRangeExhausted)

		table.cancel(11)

		id, _, err := table.register()
		require.NoError(t, err)
		assert.Equal(t, int64(11), id)
	})
}

func TestIDRangeWraps(t *testing.T) {
	r := newIDRange(1000, 1002)

	assert.Equal(t, int64(1000), r.take())
	assert.Equal(t, int64(1001), r.take())
	assert.Equal(t, int64(1000), r.take())
}
