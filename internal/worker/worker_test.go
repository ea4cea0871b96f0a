package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttalk/agenttalk/internal/audiosink"
	"github.com/agenttalk/agenttalk/internal/engine"
	"github.com/agenttalk/agenttalk/internal/queue"
	"github.com/agenttalk/agenttalk/internal/state"
)

type fakeDucker struct {
	mu     sync.Mutex
	ducked bool
	ducks  int
}

func (f *fakeDucker) Duck() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ducked = true
	f.ducks++
}
func (f *fakeDucker) Unduck() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ducked = false
}
func (f *fakeDucker) IsDucked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ducked
}

type fakeIcon struct {
	mu       sync.Mutex
	speaking bool
	notified []string
}

func (f *fakeIcon) SetSpeaking(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speaking = v
}
func (f *fakeIcon) Notify(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, msg)
}

type stubEngine struct {
	samples []float32
	rate    int
	err     error
	calls   int32
}

func (s *stubEngine) Synthesize(ctx context.Context, text, voice string, speed float64, lang string) ([]float32, int, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.samples, s.rate, nil
}
func (s *stubEngine) Name() string { return "stub" }

func newTestWorker(t *testing.T, eng engine.Engine) (*Worker, *fakeDucker, *fakeIcon, *state.State, *queue.Queue) {
	t.Helper()
	q := queue.New()
	st := state.New()
	ducker := &fakeDucker{}
	icon := &fakeIcon{}
	adapter := engine.NewAdapter(eng, nil)
	logger := log.New(nil)

	w := New(q, st, adapter, ducker, icon, logger)
	w.newSink = func(rate int) (*audiosink.Sink, error) {
		return nil, errors.New("no audio device in tests")
	}
	return w, ducker, icon, st, q
}

func TestWorker_MutedSkipsUtterance(t *testing.T) {
	eng := &stubEngine{samples: []float32{0.1}, rate: 16000}
	w, ducker, _, st, q := newTestWorker(t, eng)
	st.SetMuted(true)

	require.NoError(t, q.TryPush(queue.NewUtterance("hello")))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), eng.calls)
	assert.False(t, ducker.IsDucked())
}

func TestWorker_EmptyTextSkipped(t *testing.T) {
	eng := &stubEngine{samples: []float32{0.1}, rate: 16000}
	w, _, _, _, q := newTestWorker(t, eng)

	require.NoError(t, q.TryPush(queue.NewUtterance("   ")))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), eng.calls)
}

func TestWorker_UnduckedAfterFailure(t *testing.T) {
	eng := &stubEngine{err: errors.New("boom")}
	w, ducker, _, _, q := newTestWorker(t, eng)

	require.NoError(t, q.TryPush(queue.NewUtterance("hello")))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ducker.IsDucked(), "ducker must be restored after every exit path")
}

func TestWorker_DegradationNoticeAfterThreeFailures(t *testing.T) {
	eng := &stubEngine{err: errors.New("boom")}
	w, _, icon, _, q := newTestWorker(t, eng)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.TryPush(queue.NewUtterance("hello")))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(150 * time.Millisecond)
	icon.mu.Lock()
	defer icon.mu.Unlock()
	assert.Len(t, icon.notified, 1)
}

func TestApplyGain_ClipsAboveOne(t *testing.T) {
	out := applyGain([]float32{0.9, -0.9}, 2.0)
	assert.Equal(t, float32(1.0), out[0])
	assert.Equal(t, float32(-1.0), out[1])
}

func TestApplyGain_Identity(t *testing.T) {
	in := []float32{0.1, 0.2}
	out := applyGain(in, 1.0)
	assert.Equal(t, in, out)
}
