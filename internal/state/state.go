// Package state holds AgentTalk's process-wide runtime state: a typed
// structure with field-level accessors in place of an open-keyed dictionary.
package state

import "sync"

// EngineKind names one of the two interchangeable TTS backends.
type EngineKind string

const (
	EnginePrimary   EngineKind = "primary"
	EngineSecondary EngineKind = "secondary"
)

// SpeechMode selects how aggressively the worker speaks queued text.
type SpeechMode string

const (
	SpeechModeAuto     SpeechMode = "auto"
	SpeechModeSemiAuto SpeechMode = "semi_auto"
)

// Snapshot is an immutable value copy of the fields a Worker reads once per
// utterance and does not re-read mid-play (§5 "Shared state discipline").
type Snapshot struct {
	Voice              string
	Speed              float64
	Volume             float64
	EngineKind         EngineKind
	SecondaryModelPath string
}

// State is the single shared Runtime State object. All fields except
// Speaking are read only between utterances; a mutation mid-utterance takes
// effect at the next dequeue, never retroactively.
type State struct {
	mu sync.RWMutex

	voice              string
	speed              float64
	volume             float64
	muted              bool
	speaking           bool
	engineKind         EngineKind
	secondaryModelPath string
	preCuePath         string
	postCuePath        string
	speechMode         SpeechMode
}

// New returns state initialized to AgentTalk's documented defaults.
func New() *State {
	return &State{
		voice:      "af_heart",
		speed:      1.0,
		volume:     1.0,
		engineKind: EnginePrimary,
		speechMode: SpeechModeAuto,
	}
}

func (s *State) Voice() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice
}

func (s *State) SetVoice(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = v
}

func (s *State) Speed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speed
}

func (s *State) SetSpeed(v float64) {
	if v < 0.5 {
		v = 0.5
	} else if v > 2.0 {
		v = 2.0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = v
}

func (s *State) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

func (s *State) SetVolume(v float64) {
	if v < 0.0 {
		v = 0.0
	} else if v > 1.0 {
		v = 1.0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *State) Muted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

func (s *State) SetMuted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = v
}

// Speaking is owned by the Worker and read by Icon State.
func (s *State) Speaking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speaking
}

func (s *State) SetSpeaking(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = v
}

func (s *State) EngineKind() EngineKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engineKind
}

func (s *State) SetEngineKind(v EngineKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engineKind = v
}

func (s *State) SecondaryModelPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secondaryModelPath
}

func (s *State) SetSecondaryModelPath(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secondaryModelPath = v
}

func (s *State) PreCuePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preCuePath
}

func (s *State) SetPreCuePath(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preCuePath = v
}

func (s *State) PostCuePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postCuePath
}

func (s *State) SetPostCuePath(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postCuePath = v
}

func (s *State) SpeechMode() SpeechMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speechMode
}

func (s *State) SetSpeechMode(v SpeechMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speechMode = v
}

// TakeSnapshot reads a self-consistent snapshot of the fields an in-flight
// utterance depends on. The Worker takes exactly one of these per utterance.
func (s *State) TakeSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Voice:              s.voice,
		Speed:              s.speed,
		Volume:             s.volume,
		EngineKind:         s.engineKind,
		SecondaryModelPath: s.secondaryModelPath,
	}
}

// Persistable is the whitelisted subset of Runtime State written to the
// config file, matching the keys §6 recognizes.
type Persistable struct {
	Voice              string     `json:"voice"`
	Speed              float64    `json:"speed"`
	Volume             float64    `json:"volume"`
	Model              string     `json:"model"`
	Muted              bool       `json:"muted"`
	PreCuePath         string     `json:"pre_cue_path,omitempty"`
	PostCuePath        string     `json:"post_cue_path,omitempty"`
	SecondaryModelPath string     `json:"piper_model_path,omitempty"`
	SpeechMode         SpeechMode `json:"speech_mode,omitempty"`
}

func modelTag(k EngineKind) string {
	if k == EngineSecondary {
		return "piper"
	}
	return "kokoro"
}

func modelFromTag(tag string) EngineKind {
	if tag == "piper" {
		return EngineSecondary
	}
	return EnginePrimary
}

// ToPersistable builds the whitelisted, on-disk view of the current state.
func (s *State) ToPersistable() Persistable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Persistable{
		Voice:              s.voice,
		Speed:              s.speed,
		Volume:             s.volume,
		Model:              modelTag(s.engineKind),
		Muted:              s.muted,
		PreCuePath:         s.preCuePath,
		PostCuePath:        s.postCuePath,
		SecondaryModelPath: s.secondaryModelPath,
		SpeechMode:         s.speechMode,
	}
}

// ApplyPersistable restores state from a loaded/decoded config file.
func (s *State) ApplyPersistable(p Persistable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Voice != "" {
		s.voice = p.Voice
	}
	if p.Speed != 0 {
		s.speed = p.Speed
	}
	if p.Volume != 0 {
		s.volume = p.Volume
	}
	if p.Model != "" {
		s.engineKind = modelFromTag(p.Model)
	}
	s.muted = p.Muted
	s.preCuePath = p.PreCuePath
	s.postCuePath = p.PostCuePath
	s.secondaryModelPath = p.SecondaryModelPath
	if p.SpeechMode != "" {
		s.speechMode = p.SpeechMode
	}
}
