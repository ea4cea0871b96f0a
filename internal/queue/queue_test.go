package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_TryPush_FailsWhenFull(t *testing.T) {
	q := New()
	for i := 0; i < Capacity; i++ {
		require.NoError(t, q.TryPush(NewUtterance("x")))
	}
	err := q.TryPush(NewUtterance("overflow"))
	assert.ErrorIs(t, err, ErrFull)
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := New()
	require.NoError(t, q.TryPush(NewUtterance("one")))
	require.NoError(t, q.TryPush(NewUtterance("two")))

	ctx := context.Background()
	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", first.Utterance.Text)

	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", second.Utterance.Text)
}

func TestQueue_CueSentinel(t *testing.T) {
	q := New()
	require.NoError(t, q.TryPush(NewCue("/sounds/ready.wav")))

	item, err := q.Pop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item.Cue)
	assert.Nil(t, item.Utterance)
	assert.Equal(t, "/sounds/ready.wav", item.Cue.Path)
}

func TestQueue_Pop_RespectsContextCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_BackpressureCounting(t *testing.T) {
	q := New()
	sentences := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
	queued, dropped := 0, 0
	for _, s := range sentences {
		if err := q.TryPush(NewUtterance(s)); err != nil {
			dropped++
			continue
		}
		queued++
	}
	assert.Equal(t, 10, queued)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, len(sentences), queued+dropped)
}
