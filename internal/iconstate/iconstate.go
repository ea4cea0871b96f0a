// Package iconstate wraps github.com/getlantern/systray into the Icon
// State capability: set_image(idle|speaking), notify(message), and a
// menu-state accessor backed by Runtime State.
//
// Grounded on agenttalk/tray.py's exact menu structure (mute toggle, model
// radio group, context-aware voice radio group, read-only active-voice
// item, quit) and RedClaus-cortex/apps/go-menu/main.go's
// systray.AddMenuItem/ClickedCh idiom for turning pystray's callback-based
// menu into Go's channel-based one.
package iconstate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getlantern/systray"

	"github.com/agenttalk/agenttalk/internal/controlplane"
	"github.com/agenttalk/agenttalk/internal/state"
)

// Icon is the systray-backed Icon State capability.
type Icon struct {
	st        *state.State
	modelsDir string
	onQuit    func()
	onChange  func()

	muteItem     *systray.MenuItem
	activeItem   *systray.MenuItem
	engineItems  map[state.EngineKind]*systray.MenuItem
	voiceSection *systray.MenuItem
	voiceItems   []*systray.MenuItem
}

// New builds an Icon bound to Runtime State. onQuit is invoked when the
// user selects Quit (before the process terminates); onChange is invoked
// after any menu mutation (muting, voice, model) so the caller can persist
// config.
func New(st *state.State, modelsDir string, onQuit, onChange func()) *Icon {
	return &Icon{st: st, modelsDir: modelsDir, onQuit: onQuit, onChange: onChange, engineItems: map[state.EngineKind]*systray.MenuItem{}}
}

// Run blocks on the systray main loop, which must own the OS main thread
// (§9 "Main-thread UI requirement"). onReady is called once the icon is
// live and should launch the Control Plane (§4.7 step 6).
func (icon *Icon) Run(onReady func()) {
	systray.Run(func() { icon.setup(onReady) }, func() {})
}

func (icon *Icon) setup(onReady func()) {
	systray.SetTitle("AgentTalk")
	systray.SetTooltip("AgentTalk")
	icon.setIdleIcon()

	icon.muteItem = systray.AddMenuItem("Mute", "Toggle speech output")
	icon.refreshMuteCheck()

	engineMenu := systray.AddMenuItem("Model", "Select TTS engine")
	kokoroItem := engineMenu.AddSubMenuItemCheckbox("kokoro", "Use the primary engine", icon.st.EngineKind() == state.EnginePrimary)
	piperItem := engineMenu.AddSubMenuItemCheckbox("piper", "Use the secondary engine", icon.st.EngineKind() == state.EngineSecondary)
	icon.engineItems[state.EnginePrimary] = kokoroItem
	icon.engineItems[state.EngineSecondary] = piperItem

	icon.voiceSection = systray.AddMenuItem("Voice", "Select voice")
	icon.rebuildVoiceMenu()

	icon.activeItem = systray.AddMenuItem(icon.activeLabel(), "Currently active voice")
	icon.activeItem.Disable()

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Stop AgentTalk")

	go icon.watchMute()
	go icon.watchEngine(kokoroItem, state.EnginePrimary)
	go icon.watchEngine(piperItem, state.EngineSecondary)
	go icon.watchQuit(quitItem)

	if onReady != nil {
		onReady()
	}
}

func (icon *Icon) watchMute() {
	for range icon.muteItem.ClickedCh {
		icon.st.SetMuted(!icon.st.Muted())
		icon.refreshMuteCheck()
		icon.invokeChange()
	}
}

func (icon *Icon) watchEngine(item *systray.MenuItem, kind state.EngineKind) {
	for range item.ClickedCh {
		icon.st.SetEngineKind(kind)
		for k, i := range icon.engineItems {
			if k == kind {
				i.Check()
			} else {
				i.Uncheck()
			}
		}
		icon.rebuildVoiceMenu()
		icon.activeItem.SetTitle(icon.activeLabel())
		icon.invokeChange()
	}
}

func (icon *Icon) watchQuit(item *systray.MenuItem) {
	<-item.ClickedCh
	if icon.onQuit != nil {
		icon.onQuit()
	}
	systray.Quit()
}

func (icon *Icon) refreshMuteCheck() {
	if icon.st.Muted() {
		icon.muteItem.Check()
	} else {
		icon.muteItem.Uncheck()
	}
}

// rebuildVoiceMenu regenerates the Voice submenu for the active engine:
// the static kokoro voice list, or the enumerated secondary .onnx stems
// (agenttalk/tray.py's _voice_items()).
func (icon *Icon) rebuildVoiceMenu() {
	for _, item := range icon.voiceItems {
		item.Hide()
	}
	icon.voiceItems = nil

	if icon.st.EngineKind() == state.EngineSecondary {
		stems := icon.piperStems()
		if len(stems) == 0 {
			item := icon.voiceSection.AddSubMenuItem("No Piper models found", "")
			item.Disable()
			icon.voiceItems = append(icon.voiceItems, item)
			return
		}
		for _, stem := range stems {
			full := filepath.Join(icon.modelsDir, "piper", stem+".onnx")
			item := icon.voiceSection.AddSubMenuItemCheckbox(stem, "", icon.st.SecondaryModelPath() == full)
			icon.voiceItems = append(icon.voiceItems, item)
			go icon.watchPiperVoice(item, full)
		}
		return
	}

	for _, voice := range controlplane.PrimaryVoices {
		item := icon.voiceSection.AddSubMenuItemCheckbox(voice, "", icon.st.Voice() == voice)
		icon.voiceItems = append(icon.voiceItems, item)
		go icon.watchKokoroVoice(item, voice)
	}
}

func (icon *Icon) watchKokoroVoice(item *systray.MenuItem, voice string) {
	for range item.ClickedCh {
		icon.st.SetVoice(voice)
		icon.rebuildVoiceMenu()
		icon.activeItem.SetTitle(icon.activeLabel())
		icon.invokeChange()
	}
}

func (icon *Icon) watchPiperVoice(item *systray.MenuItem, fullPath string) {
	for range item.ClickedCh {
		icon.st.SetSecondaryModelPath(fullPath)
		icon.st.SetEngineKind(state.EngineSecondary)
		icon.rebuildVoiceMenu()
		icon.activeItem.SetTitle(icon.activeLabel())
		icon.invokeChange()
	}
}

func (icon *Icon) piperStems() []string {
	dir := filepath.Join(icon.modelsDir, "piper")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".onnx") {
			continue
		}
		stems = append(stems, strings.TrimSuffix(e.Name(), ".onnx"))
	}
	sort.Strings(stems)
	return stems
}

func (icon *Icon) activeLabel() string {
	if icon.st.EngineKind() == state.EngineSecondary && icon.st.SecondaryModelPath() != "" {
		return fmt.Sprintf("Active: %s", strings.TrimSuffix(filepath.Base(icon.st.SecondaryModelPath()), ".onnx"))
	}
	return fmt.Sprintf("Active: %s", icon.st.Voice())
}

func (icon *Icon) invokeChange() {
	if icon.onChange != nil {
		icon.onChange()
	}
}

// SetSpeaking implements worker.IconState.
func (icon *Icon) SetSpeaking(speaking bool) {
	if speaking {
		icon.setSpeakingIcon()
	} else {
		icon.setIdleIcon()
	}
}

// Notify implements worker.IconState: surface a single user-visible
// degradation notice (§7 "Degraded").
func (icon *Icon) Notify(message string) {
	systray.SetTooltip(message)
}

func (icon *Icon) setIdleIcon() {
	systray.SetIcon(idleIconBytes)
}

func (icon *Icon) setSpeakingIcon() {
	systray.SetIcon(speakingIconBytes)
}
