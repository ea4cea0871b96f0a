// Package engine defines the uniform synthesis contract both TTS backends
// implement, and the adapter that dispatches between them by engine_kind.
//
// Grounded on the teacher's pkg/tts/engine.go (TTSEngine interface shape)
// and pkg/tts/engines/piper.go's wrapped-error pattern.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agenttalk/agenttalk/internal/state"
)

// Kind classifies a synthesis failure so the Worker can decide whether to
// log-and-skip or surface a degradation notice (§7).
type Kind int

const (
	KindMisconfigured Kind = iota
	KindModelMissing
	KindBackendUnavailable
	KindSynthesisError
)

func (k Kind) String() string {
	switch k {
	case KindMisconfigured:
		return "misconfigured"
	case KindModelMissing:
		return "model_missing"
	case KindBackendUnavailable:
		return "backend_unavailable"
	case KindSynthesisError:
		return "synthesis_error"
	default:
		return "unknown"
	}
}

// Error wraps a synthesis failure with its taxonomy kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, err error) error { return &Error{Kind: kind, Err: err} }

// NewError builds a taxonomy-tagged engine error for use by Engine
// implementations outside this package.
func NewError(kind Kind, err error) error { return newErr(kind, err) }

// Engine is the uniform contract both backends implement.
type Engine interface {
	// Synthesize returns mono float32 samples in [-1,1] and the sample
	// rate they were produced at. voice and lang are advisory; speed below
	// 0.1 is clamped to 0.1 by the implementation.
	Synthesize(ctx context.Context, text, voice string, speed float64, lang string) ([]float32, int, error)
	Name() string
}

// MinSpeed is the floor every engine clamps its speed parameter to (§4.2).
const MinSpeed = 0.1

// ClampSpeed enforces the floor documented in §4.2.
func ClampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	return speed
}

// Adapter dispatches between the primary engine (loaded once, eagerly) and
// the secondary engine (lazily loaded, keyed by model path, invalidated on
// path change). No module-level mutable globals — the adapter is
// constructed once and passed to the Worker (§9 "Lazy-loaded backend").
type Adapter struct {
	primary Engine

	mu               sync.Mutex
	secondaryFactory func(modelPath string) (Engine, error)
	secondary        Engine
	secondaryPath    string
}

// NewAdapter wires a warmed primary engine and a factory used to lazily
// build secondary-engine instances keyed by model path.
func NewAdapter(primary Engine, secondaryFactory func(modelPath string) (Engine, error)) *Adapter {
	return &Adapter{primary: primary, secondaryFactory: secondaryFactory}
}

// Resolve returns the Engine the given snapshot selects, loading or
// reloading the secondary backend if its model path changed since last use.
func (a *Adapter) Resolve(snap state.Snapshot) (Engine, error) {
	if snap.EngineKind == state.EnginePrimary {
		if a.primary == nil {
			return nil, newErr(KindBackendUnavailable, errors.New("primary engine not loaded"))
		}
		return a.primary, nil
	}

	if snap.SecondaryModelPath == "" {
		return nil, newErr(KindMisconfigured, errors.New("secondary_model_path unset"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.secondary != nil && a.secondaryPath == snap.SecondaryModelPath {
		return a.secondary, nil
	}

	eng, err := a.secondaryFactory(snap.SecondaryModelPath)
	if err != nil {
		return nil, err
	}
	a.secondary = eng
	a.secondaryPath = snap.SecondaryModelPath
	return eng, nil
}

// Warmup synthesizes a trivial utterance on the primary engine to force any
// deferred backend initialization (§4.2, "Warmup" glossary entry).
func (a *Adapter) Warmup(ctx context.Context, voice string) error {
	if a.primary == nil {
		return newErr(KindBackendUnavailable, errors.New("primary engine not configured"))
	}
	_, _, err := a.primary.Synthesize(ctx, "warming up.", voice, 1.0, "en-us")
	if err != nil {
		return newErr(KindSynthesisError, err)
	}
	return nil
}
