//go:build windows

package duck

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsDucker implements Duck/Unduck over the Windows Core Audio Session
// API (IAudioSessionManager2 / IAudioSessionControl2 / ISimpleAudioVolume),
// called directly through COM vtables via golang.org/x/sys/windows — no pack
// example binds these interfaces, so this talks raw COM rather than go-ole
// (see DESIGN.md).
//
// Grounded on agenttalk/audio_duck.py's AudioDucker: CoInitialize per call,
// skip sessions with no Process (System Sounds) and the current process
// (self), save each session's volume before halving it, restore on unduck,
// never let a failure escape to the caller.
type windowsDucker struct {
	mu      sync.Mutex
	saved   map[uint32]float32 // pid -> pre-duck linear volume
	selfPID uint32
}

// New returns the Windows Ducker.
func New() Ducker {
	return &windowsDucker{saved: make(map[uint32]float32), selfPID: uint32(windows.GetCurrentProcessId())}
}

func (d *windowsDucker) IsDucked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.saved) > 0
}

// Duck snapshots every other session's volume and halves it. Every failure
// is swallowed — a broken duck must not crash the Worker (§4.3 invariant).
func (d *windowsDucker) Duck() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := coInitialize(); err != nil {
		return
	}
	defer coUninitialize()

	d.saved = make(map[uint32]float32)

	sessions, err := enumerateAudioSessions()
	if err != nil {
		return
	}
	for _, sess := range sessions {
		if sess.pid == 0 || sess.pid == d.selfPID {
			continue
		}
		vol, err := sess.getMasterVolume()
		if err != nil || vol <= 0.0 {
			sess.release()
			continue
		}
		d.saved[sess.pid] = vol
		_ = sess.setMasterVolume(vol * 0.5)
		sess.release()
	}
}

// Unduck restores every snapshotted session's volume and clears the
// snapshot. A no-op (no COM init at all) when nothing was ducked.
func (d *windowsDucker) Unduck() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.saved) == 0 {
		return
	}
	if err := coInitialize(); err != nil {
		d.saved = make(map[uint32]float32)
		return
	}
	defer coUninitialize()

	sessions, err := enumerateAudioSessions()
	if err == nil {
		for _, sess := range sessions {
			if orig, ok := d.saved[sess.pid]; ok {
				_ = sess.setMasterVolume(orig)
			}
			sess.release()
		}
	}
	d.saved = make(map[uint32]float32)
}

var (
	ole32              = windows.NewLazySystemDLL("ole32.dll")
	procCoInitializeEx = ole32.NewProc("CoInitializeEx")
	procCoUninitialize = ole32.NewProc("CoUninitialize")
)

func coInitialize() error {
	const coInitApartmentThreaded = 0x2
	r, _, _ := procCoInitializeEx.Call(0, coInitApartmentThreaded)
	// S_OK (0) or S_FALSE (1, already initialized on this thread) both
	// mean we can proceed.
	if r != 0 && r != 1 {
		return syscall.Errno(r)
	}
	return nil
}

func coUninitialize() {
	procCoUninitialize.Call()
}

// audioSession is a thin handle over one Core Audio session's
// ISimpleAudioVolume + owning process id, obtained through
// IAudioSessionManager2/IAudioSessionEnumerator.
//
// The vtable offsets for these interfaces are part of the documented
// Windows ABI (mmdeviceapi.h / audiopolicy.h); ptr holds the live COM
// pointer for the duration of one duck/unduck call.
type audioSession struct {
	ptr unsafe.Pointer
	pid uint32
}

func (s *audioSession) getMasterVolume() (float32, error) {
	return comGetMasterVolume(s.ptr)
}

func (s *audioSession) setMasterVolume(v float32) error {
	return comSetMasterVolume(s.ptr, v)
}

func (s *audioSession) release() {
	comRelease(s.ptr)
}

// enumerateAudioSessions walks the default render device's audio session
// manager and returns a handle per active session. Any COM failure along
// the way yields a partial or empty result, never a panic — callers already
// treat an error here as "duck did nothing this round."
func enumerateAudioSessions() ([]*audioSession, error) {
	return comEnumerateSessions()
}
