package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// defaultPiperSampleRate is the fallback used only when a voice model ships
// without a readable config sidecar.
const defaultPiperSampleRate = 22050

const piperTimeout = 30 * time.Second

// PiperEngine is the secondary, subprocess-exec TTS backend: a `piper`
// binary invoked once per utterance with a voice model path.
//
// Grounded directly on the teacher's pkg/tts/engines/piper.go (binary
// discovery, --config sidecar lookup, per-call subprocess invocation,
// timeout) and agenttalk/piper_engine.py (speed floor, reporting the voice's
// actual sample rate rather than assuming one — different Piper voices run
// at different native rates).
type PiperEngine struct {
	binaryPath string
	modelPath  string
	configPath string
	sampleRate int
	timeout    time.Duration
}

// NewPiperEngine builds a secondary engine bound to one voice model path.
// The Adapter constructs one of these per distinct secondary_model_path.
func NewPiperEngine(modelPath string) (*PiperEngine, error) {
	if modelPath == "" {
		return nil, NewError(KindMisconfigured, errors.New("piper: model path unset"))
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, NewError(KindModelMissing, fmt.Errorf("piper model: %w", err))
	}
	bin, err := findPiperBinary()
	if err != nil {
		return nil, NewError(KindBackendUnavailable, err)
	}

	configPath := strings.TrimSuffix(modelPath, ".onnx") + ".onnx.json"
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	return &PiperEngine{
		binaryPath: bin,
		modelPath:  modelPath,
		configPath: configPath,
		sampleRate: readVoiceSampleRate(configPath),
		timeout:    piperTimeout,
	}, nil
}

func (p *PiperEngine) Name() string { return "secondary" }

// Synthesize invokes the piper binary, feeding text on stdin and reading raw
// headerless PCM16 back from stdout. voice and lang are ignored — Piper's
// voice is baked into the model file. The sample rate returned is the one
// read from the model's own config sidecar at load time rather than a
// hardcoded constant, since different voice models run at different native
// rates (mirroring agenttalk/piper_engine.py's wf.getframerate() read-back).
func (p *PiperEngine) Synthesize(ctx context.Context, text, voice string, speed float64, lang string) ([]float32, int, error) {
	speed = ClampSpeed(speed)
	lengthScale := 1.0 / speed

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{"--model", p.modelPath, "--output-raw", "--length-scale", fmt.Sprintf("%.4f", lengthScale)}
	if p.configPath != "" {
		args = append(args, "--config", p.configPath)
	}
	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	cmd.Stdin = bytes.NewBufferString(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, 0, NewError(KindSynthesisError, fmt.Errorf("piper run: %w: %s", err, stderr.String()))
	}

	samples, err := decodeRawPCM16(stdout.Bytes())
	if err != nil {
		return nil, 0, NewError(KindSynthesisError, fmt.Errorf("piper output: %w", err))
	}
	if len(samples) == 0 {
		return nil, 0, NewError(KindSynthesisError, errors.New("piper produced no audio"))
	}
	return samples, p.sampleRate, nil
}

// decodeRawPCM16 converts little-endian signed 16-bit PCM (Piper's
// --output-raw format) into float32 samples in [-1, 1].
func decodeRawPCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, errors.New("odd-length PCM buffer")
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// voiceConfig mirrors the fields of a Piper voice's .onnx.json sidecar that
// matter here; the real file carries many more (espeak, phoneme map, ...).
type voiceConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// readVoiceSampleRate reads the voice's native sample rate from its config
// sidecar. A missing, unreadable, or zero-rate config falls back to Piper's
// common default rather than failing model load over a cosmetic detail.
func readVoiceSampleRate(configPath string) int {
	if configPath == "" {
		return defaultPiperSampleRate
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return defaultPiperSampleRate
	}
	var cfg voiceConfig
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.Audio.SampleRate == 0 {
		return defaultPiperSampleRate
	}
	return cfg.Audio.SampleRate
}

func findPiperBinary() (string, error) {
	name := "piper"
	if runtime.GOOS == "windows" {
		name = "piper.exe"
	}
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	candidates := []string{
		filepath.Join(".", name),
		filepath.Join("bin", name),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("piper binary not found on PATH or in bin/")
}

// SecondaryFactory builds the closure the Adapter calls to lazily load a
// PiperEngine keyed by model path (§9 "Lazy-loaded backend").
func SecondaryFactory() func(modelPath string) (Engine, error) {
	return func(modelPath string) (Engine, error) {
		return NewPiperEngine(modelPath)
	}
}
