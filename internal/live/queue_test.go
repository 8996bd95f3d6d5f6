package live

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateQueue_FIFO(t *testing.T) {
	q := newUpdateQueue()
	for i := int64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(Update{Seq: i}))
	}
	assert.Equal(t, 3, q.Len())

	for i := int64(1); i <= 3; i++ {
		u, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, u.Seq)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestUpdateQueue_SignalCoalesces(t *testing.T) {
	q := newUpdateQueue()
	q.Enqueue(Update{Seq: 1})
	q.Enqueue(Update{Seq: 2})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestUpdateQueue_Close(t *testing.T) {
	q := newUpdateQueue()
	q.Enqueue(Update{Seq: 1})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Update{Seq: 2}), "enqueue after close should fail")

	u, ok := q.TryDequeue()
	require.True(t, ok, "queued updates survive close")
	assert.Equal(t, int64(1), u.Seq)

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("closed queue should wake waiters")
	}
}
