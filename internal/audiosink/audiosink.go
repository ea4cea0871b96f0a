// Package audiosink implements the blocking audio playback contract: play
// synchronously on the default output device, stop cancels in-flight
// playback.
//
// Grounded on the teacher's pkg/tts/player.go (AudioContext singleton,
// platform-specific buffer sizing, oto.NewContext + readyChan wait),
// trimmed to the single synchronous track the Worker needs — no
// pause/resume/crossfade/position-tracking, which are teacher features the
// Worker's one-track-at-a-time contract never uses.
package audiosink

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

func bufferSize() time.Duration {
	switch runtime.GOOS {
	case "darwin":
		return 100 * time.Millisecond
	case "windows":
		return 50 * time.Millisecond
	default:
		return 50 * time.Millisecond
	}
}

// Sink owns the process-wide audio output device and plays one track at a
// time, blocking until it finishes or is stopped.
type Sink struct {
	mu      sync.Mutex
	ctx     *oto.Context
	current *oto.Player
	stopped bool
}

// New opens an oto context on the default output device at the given
// sample rate. It does not query the device's own rate or configure
// sample-rate conversion; the context plays at exactly sampleRate.
func New(sampleRate int) (*Sink, error) {
	options := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize(),
	}
	ctx, readyChan, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("audiosink: open output device: %w", err)
	}
	<-readyChan
	return &Sink{ctx: ctx}, nil
}

// Play blocks until the samples finish playing or ctx is canceled / Stop is
// called. Samples are mono float32 in [-1, 1] at the sink's configured
// sample rate.
func (s *Sink) Play(ctx context.Context, samples []float32) error {
	reader := newFloat32Reader(samples)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	player := s.ctx.NewPlayer(reader)
	s.current = player
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.current == player {
			s.current = nil
		}
		s.mu.Unlock()
		player.Close()
	}()

	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}

// Stop cancels any in-progress playback immediately; Play's caller observes
// this via its context or via IsPlaying turning false.
func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Pause()
	}
}

// Close marks the sink stopped: later Play calls return immediately without
// playing. The underlying oto context stays open.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}
