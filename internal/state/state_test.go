package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.Equal(t, "af_heart", s.Voice())
	assert.Equal(t, 1.0, s.Speed())
	assert.Equal(t, 1.0, s.Volume())
	assert.False(t, s.Muted())
	assert.Equal(t, EnginePrimary, s.EngineKind())
	assert.Equal(t, SpeechModeAuto, s.SpeechMode())
}

func TestSetSpeed_Clamps(t *testing.T) {
	s := New()
	s.SetSpeed(0.1)
	assert.Equal(t, 0.5, s.Speed())
	s.SetSpeed(5.0)
	assert.Equal(t, 2.0, s.Speed())
	s.SetSpeed(1.25)
	assert.Equal(t, 1.25, s.Speed())
}

func TestSetVolume_Clamps(t *testing.T) {
	s := New()
	s.SetVolume(-1.0)
	assert.Equal(t, 0.0, s.Volume())
	s.SetVolume(2.0)
	assert.Equal(t, 1.0, s.Volume())
}

func TestTakeSnapshot_MatchesCurrentFields(t *testing.T) {
	s := New()
	s.SetVoice("bm_george")
	s.SetSpeed(1.5)
	s.SetVolume(0.5)
	s.SetEngineKind(EngineSecondary)
	s.SetSecondaryModelPath("/models/piper/en_US.onnx")

	snap := s.TakeSnapshot()
	assert.Equal(t, "bm_george", snap.Voice)
	assert.Equal(t, 1.5, snap.Speed)
	assert.Equal(t, 0.5, snap.Volume)
	assert.Equal(t, EngineSecondary, snap.EngineKind)
	assert.Equal(t, "/models/piper/en_US.onnx", snap.SecondaryModelPath)
}

func TestToPersistable_RoundTrip(t *testing.T) {
	s := New()
	s.SetVoice("af_sky")
	s.SetEngineKind(EngineSecondary)
	s.SetSecondaryModelPath("/models/piper/en_US.onnx")

	p := s.ToPersistable()
	assert.Equal(t, "af_sky", p.Voice)
	assert.Equal(t, "piper", p.Model)
	assert.Equal(t, "/models/piper/en_US.onnx", p.SecondaryModelPath)

	restored := New()
	restored.ApplyPersistable(p)
	assert.Equal(t, "af_sky", restored.Voice())
	assert.Equal(t, EngineSecondary, restored.EngineKind())
	assert.Equal(t, "/models/piper/en_US.onnx", restored.SecondaryModelPath())
}

// TestApplyPersistable_PartialUpdatePreservesZeroValueFields covers a
// hand-edited or partially-written config file that omits fields: a missing
// "volume" (decoded as the zero value) must not silently mute output, the
// same guard voice, speed, model and speech_mode get in ApplyPersistable.
func TestApplyPersistable_PartialUpdatePreservesZeroValueFields(t *testing.T) {
	s := New()
	s.SetVoice("am_adam")
	s.SetSpeed(1.75)
	s.SetVolume(0.6)

	s.ApplyPersistable(Persistable{})

	assert.Equal(t, "am_adam", s.Voice(), "empty voice in the update must not overwrite the prior value")
	assert.Equal(t, 1.75, s.Speed(), "zero speed in the update must not overwrite the prior value")
	assert.Equal(t, 0.6, s.Volume(), "zero volume in the update must not silently mute output")
}

func TestApplyPersistable_ExplicitZeroVolumeStillFloorsAtDefault(t *testing.T) {
	s := New()
	s.ApplyPersistable(Persistable{Voice: "af_bella", Volume: 0})
	assert.Equal(t, 1.0, s.Volume())
}
