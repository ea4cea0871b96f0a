// Package worker implements the TTS Worker: the single long-lived task
// consuming the bounded queue and running each item through the
// Idle -> Resolving -> Ducking -> Playing -> Restoring -> Idle protocol.
//
// Grounded on agenttalk/tts_worker.py's _tts_worker loop (mute check,
// speaking flag + icon swap, pre-cue, duck, synthesize+play, unduck,
// post-cue, finally-guaranteed cleanup), generalized from "batch of
// sentences" to "one tagged queue item at a time" per the sentinel-queue
// model spec §9 directs.
package worker

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/agenttalk/agenttalk/internal/audiosink"
	"github.com/agenttalk/agenttalk/internal/duck"
	"github.com/agenttalk/agenttalk/internal/engine"
	"github.com/agenttalk/agenttalk/internal/queue"
	"github.com/agenttalk/agenttalk/internal/state"
)

// degradationThreshold is the number of consecutive failures that trigger a
// single user-visible degradation notice (§4.5 step 4, §7).
const degradationThreshold = 3

// IconState is the subset of the Icon State capability the Worker invokes.
// A nil IconState makes every call below a no-op (§4.8).
type IconState interface {
	SetSpeaking(speaking bool)
	Notify(message string)
}

// State labels the worker's current phase for observability; not required
// by any external contract but useful for health/debug reporting.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateDucking
	StatePlaying
	StateRestoring
)

// Worker drains the bounded queue one item at a time.
type Worker struct {
	q       *queue.Queue
	state   *state.State
	adapter *engine.Adapter
	ducker  duck.Ducker
	icon    IconState
	logger  *log.Logger

	newSink func(sampleRate int) (*audiosink.Sink, error)

	mu                  sync.Mutex
	sinkRate            int
	sink                *audiosink.Sink
	consecutiveFailures int
	current             State
}

// New constructs a Worker. icon may be nil (headless mode).
func New(q *queue.Queue, st *state.State, adapter *engine.Adapter, ducker duck.Ducker, icon IconState, logger *log.Logger) *Worker {
	return &Worker{
		q:       q,
		state:   st,
		adapter: adapter,
		ducker:  ducker,
		icon:    icon,
		logger:  logger,
		newSink: audiosink.New,
	}
}

// Run drains the queue until ctx is canceled. Intended to run in its own
// goroutine for the lifetime of the process.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.q.Pop(ctx)
		if err != nil {
			return
		}
		w.processItem(ctx, item)
	}
}

// Stop releases any currently playing audio immediately (used by /stop).
func (w *Worker) Stop() {
	w.mu.Lock()
	sink := w.sink
	w.mu.Unlock()
	if sink != nil {
		sink.Stop()
	}
}

func (w *Worker) processItem(ctx context.Context, item queue.Item) {
	if item.Cue != nil {
		w.playCue(ctx, item.Cue.Path)
		return
	}
	w.playUtterance(ctx, item.Utterance.Text)
}

// playCue plays a cue synchronously. Cues never trigger ducking or engine
// resolution (§4.5 step 2).
func (w *Worker) playCue(ctx context.Context, path string) {
	if path == "" {
		return
	}
	samples, rate, err := decodeCueFile(path)
	if err != nil {
		w.logger.Warn("cue playback failed", "path", path, "err", err)
		return
	}
	sink, err := w.acquireSink(rate)
	if err != nil {
		w.logger.Warn("cue sink unavailable", "err", err)
		return
	}
	if err := sink.Play(ctx, samples); err != nil {
		w.logger.Warn("cue playback interrupted", "err", err)
	}
}

func (w *Worker) playUtterance(ctx context.Context, text string) {
	ducked := false
	defer func() {
		if ducked {
			w.safeUnduck()
		}
		w.state.SetSpeaking(false)
		w.notifyIcon(false)
		w.setPhase(StateIdle)
	}()

	if w.state.Muted() {
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	w.state.SetSpeaking(true)
	w.notifyIcon(true)

	snap := w.state.TakeSnapshot()

	w.setPhase(StateResolving)
	eng, err := w.adapter.Resolve(snap)
	if err != nil {
		w.onFailure("resolve engine", err)
		return
	}

	w.setPhase(StateDucking)
	w.ducker.Duck()
	ducked = true

	w.setPhase(StatePlaying)
	samples, rate, err := eng.Synthesize(ctx, text, snap.Voice, snap.Speed, "en-us")
	if err != nil {
		w.onFailure("synthesize", err)
		return
	}
	samples = applyGain(samples, snap.Volume)

	sink, err := w.acquireSink(rate)
	if err != nil {
		w.onFailure("acquire sink", err)
		return
	}
	if err := sink.Play(ctx, samples); err != nil {
		w.onFailure("play", err)
		return
	}

	w.setPhase(StateRestoring)
	w.safeUnduck()
	ducked = false

	w.mu.Lock()
	w.consecutiveFailures = 0
	w.mu.Unlock()
}

// onFailure logs a failed utterance and tracks consecutive failures toward
// the degradation notice (§4.5 step 4, §7 "Degraded").
func (w *Worker) onFailure(stage string, err error) {
	w.logger.Error("utterance failed", "stage", stage, "err", err)
	w.mu.Lock()
	w.consecutiveFailures++
	n := w.consecutiveFailures
	w.mu.Unlock()
	if n == degradationThreshold {
		w.notifyDegraded()
	}
}

func (w *Worker) notifyDegraded() {
	if w.icon != nil {
		w.icon.Notify("AgentTalk is having trouble speaking — check the log")
	}
}

func (w *Worker) safeUnduck() {
	w.ducker.Unduck()
}

func (w *Worker) notifyIcon(speaking bool) {
	if w.icon == nil {
		return
	}
	w.icon.SetSpeaking(speaking)
}

func (w *Worker) setPhase(s State) {
	w.mu.Lock()
	w.current = s
	w.mu.Unlock()
}

// acquireSink lazily opens (or reopens, on rate change) the audio sink for
// the given sample rate — the service never assumes a fixed output rate
// (§4.4).
func (w *Worker) acquireSink(rate int) (*audiosink.Sink, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink != nil && w.sinkRate == rate {
		return w.sink, nil
	}
	if w.sink != nil {
		w.sink.Close()
	}
	sink, err := w.newSink(rate)
	if err != nil {
		return nil, err
	}
	w.sink = sink
	w.sinkRate = rate
	return sink, nil
}

// applyGain scales samples by the linear volume gain and clips to [-1, 1]
// (§4.5 step 3g, §3 "any linear gain above 1.0 must be clipped").
func applyGain(samples []float32, volume float64) []float32 {
	if volume == 1.0 {
		return samples
	}
	out := make([]float32, len(samples))
	g := float32(volume)
	for i, s := range samples {
		v := s * g
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		out[i] = v
	}
	return out
}
