package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttalk/agenttalk/internal/state"
)

type stubEngine struct {
	name    string
	samples []float32
	rate    int
	err     error
	calls   int
}

func (s *stubEngine) Synthesize(ctx context.Context, text, voice string, speed float64, lang string) ([]float32, int, error) {
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.samples, s.rate, nil
}

func (s *stubEngine) Name() string { return s.name }

func TestAdapter_ResolvePrimary(t *testing.T) {
	primary := &stubEngine{name: "primary"}
	a := NewAdapter(primary, nil)

	eng, err := a.Resolve(state.Snapshot{EngineKind: state.EnginePrimary})
	require.NoError(t, err)
	assert.Same(t, primary, eng)
}

func TestAdapter_ResolveSecondary_MisconfiguredWhenPathEmpty(t *testing.T) {
	a := NewAdapter(&stubEngine{}, func(string) (Engine, error) { return &stubEngine{}, nil })
	_, err := a.Resolve(state.Snapshot{EngineKind: state.EngineSecondary})
	require.Error(t, err)
	var engErr *Error
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, KindMisconfigured, engErr.Kind)
}

func TestAdapter_ResolveSecondary_CachesByPath(t *testing.T) {
	builds := 0
	factory := func(path string) (Engine, error) {
		builds++
		return &stubEngine{name: path}, nil
	}
	a := NewAdapter(&stubEngine{}, factory)

	snap := state.Snapshot{EngineKind: state.EngineSecondary, SecondaryModelPath: "/models/a.onnx"}
	e1, err := a.Resolve(snap)
	require.NoError(t, err)
	e2, err := a.Resolve(snap)
	require.NoError(t, err)
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, builds)

	snap.SecondaryModelPath = "/models/b.onnx"
	e3, err := a.Resolve(snap)
	require.NoError(t, err)
	assert.NotSame(t, e1, e3)
	assert.Equal(t, 2, builds)
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, MinSpeed, ClampSpeed(0.01))
	assert.Equal(t, 1.5, ClampSpeed(1.5))
}

func TestAdapter_Warmup(t *testing.T) {
	primary := &stubEngine{name: "primary", samples: []float32{0}, rate: 24000}
	a := NewAdapter(primary, nil)
	require.NoError(t, a.Warmup(context.Background(), "af_heart"))
	assert.Equal(t, 1, primary.calls)
}
