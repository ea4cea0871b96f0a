// Package queue implements the bounded FIFO carrying Utterance and Cue
// items from the Control Plane to the TTS Worker.
//
// Grounded on the teacher's internal/queue/queue.go (channel-backed FIFO),
// generalized from the teacher's single TextSegment item type to the
// tagged union §3/§9 require ("Variant queue items").
package queue

import (
	"context"
	"errors"
)

// Capacity is the fixed bound every queue instance enforces (§3).
const Capacity = 10

// ErrFull is returned by TryPush when the queue has no free slot.
var ErrFull = errors.New("queue: full")

// Item is the tagged union the Worker's single loop switches on. Adding a
// new sentinel is an additive change: add a case, not a new type hierarchy.
type Item struct {
	Utterance *Utterance
	Cue       *Cue
}

// Utterance is a single preprocessed sentence destined for synthesis.
type Utterance struct {
	Text string
}

// Cue is a sentinel requesting cue playback without synthesis.
type Cue struct {
	Path string
}

// NewUtterance builds a queue Item carrying an Utterance.
func NewUtterance(text string) Item { return Item{Utterance: &Utterance{Text: text}} }

// NewCue builds a queue Item carrying a Cue.
func NewCue(path string) Item { return Item{Cue: &Cue{Path: path}} }

// Queue is a bounded FIFO: non-blocking push on the producer side, blocking
// pop on the consumer side, strict in-order delivery per producer (§5).
type Queue struct {
	ch chan Item
}

// New returns an empty queue of fixed capacity.
func New() *Queue {
	return &Queue{ch: make(chan Item, Capacity)}
}

// TryPush attempts a non-blocking enqueue. Returns ErrFull if the queue has
// no free slot — producers fail fast rather than growing unboundedly (§3).
func (q *Queue) TryPush(item Item) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Pop blocks until an item is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	select {
	case item := <-q.ch:
		return item, nil
	case <-ctx.Done():
		return Item{}, ctx.Err()
	}
}

// Len reports the number of items currently queued.
func (q *Queue) Len() int { return len(q.ch) }
