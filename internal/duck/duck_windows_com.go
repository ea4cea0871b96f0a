//go:build windows

package duck

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// This file implements the minimal slice of the Windows Core Audio Session
// API needed by Duck/Unduck, calling documented COM vtables directly
// instead of through a binding library (see DESIGN.md: no pack example
// exercises IAudioSessionManager2/ISimpleAudioVolume).
//
// COM objects here are accessed as **uintptr: the first field of any COM
// object is its vtable pointer, and each vtable slot is an uintptr-sized
// function pointer in declaration order, per the published interface
// definitions in mmdeviceapi.h / audiopolicy.h.

var (
	clsidMMDeviceEnumerator = windows.GUID{Data1: 0xBCDE0395, Data2: 0xE52F, Data3: 0x467C,
		Data4: [8]byte{0x8E, 0x3D, 0xC4, 0x57, 0x92, 0x91, 0x69, 0x2E}}
	iidIMMDeviceEnumerator = windows.GUID{Data1: 0xA95664D2, Data2: 0x9614, Data3: 0x4F35,
		Data4: [8]byte{0xA7, 0x46, 0xDE, 0x8D, 0xB6, 0x36, 0x17, 0xE6}}
	iidIAudioSessionManager2 = windows.GUID{Data1: 0x77AA99A0, Data2: 0x1BD6, Data3: 0x484F,
		Data4: [8]byte{0x8B, 0xC7, 0x2C, 0x65, 0x4C, 0x9A, 0x9B, 0x6F}}
	iidISimpleAudioVolume = windows.GUID{Data1: 0x87CE5498, Data2: 0x68D6, Data3: 0x44E5,
		Data4: [8]byte{0x92, 0x15, 0x6D, 0xA4, 0x7E, 0xF8, 0x83, 0xD8}}
	iidIAudioSessionControl2 = windows.GUID{Data1: 0xBFB7FF88, Data2: 0x7239, Data3: 0x4FC1,
		Data4: [8]byte{0x8A, 0x4C, 0xA4, 0xAA, 0x2C, 0x44, 0x67, 0xD6}}
)

const (
	eRender     = 0
	eMultimedia = 1

	clsctxInprocServer = 0x1
)

// comCall invokes the method at vtable slot `index` on a COM object. The
// first field of any COM object is its vtable pointer; each slot holds an
// uintptr-sized function pointer, per the standard COM ABI.
func comCall(obj unsafe.Pointer, index uintptr, args ...uintptr) (uintptr, error) {
	vtbl := *(**uintptr)(obj)
	slot := (*uintptr)(unsafe.Pointer(uintptr(unsafe.Pointer(vtbl)) + index*unsafe.Sizeof(uintptr(0))))
	fn := *slot

	a := append([]uintptr{uintptr(obj)}, args...)
	r, _, _ := syscall.SyscallN(fn, a...)
	if int32(r) < 0 {
		return r, syscall.Errno(r)
	}
	return r, nil
}

func comRelease(obj unsafe.Pointer) {
	if obj == nil {
		return
	}
	// IUnknown::Release is vtable slot 2.
	comCall(obj, 2)
}

// comEnumerateSessions builds the default render endpoint's session
// manager and returns one audioSession handle per live session. This walks:
// IMMDeviceEnumerator -> default IMMDevice -> IAudioSessionManager2 ->
// IAudioSessionEnumerator -> IAudioSessionControl2 (per session) ->
// ISimpleAudioVolume.
func comEnumerateSessions() ([]*audioSession, error) {
	var enumerator unsafe.Pointer
	if err := coCreateInstance(&clsidMMDeviceEnumerator, &iidIMMDeviceEnumerator, &enumerator); err != nil {
		return nil, err
	}
	defer comRelease(enumerator)

	var device unsafe.Pointer
	// IMMDeviceEnumerator::GetDefaultAudioEndpoint, vtable slot 4.
	if _, err := comCall(enumerator, 4, uintptr(eRender), uintptr(eMultimedia), uintptr(unsafe.Pointer(&device))); err != nil {
		return nil, err
	}
	if device == nil {
		return nil, errors.New("duck: no default render device")
	}
	defer comRelease(device)

	var sessionManager unsafe.Pointer
	// IMMDevice::Activate, vtable slot 3.
	if _, err := comCall(device, 3,
		uintptr(unsafe.Pointer(&iidIAudioSessionManager2)),
		uintptr(clsctxInprocServer), 0,
		uintptr(unsafe.Pointer(&sessionManager)),
	); err != nil {
		return nil, err
	}
	defer comRelease(sessionManager)

	var sessionEnumerator unsafe.Pointer
	// IAudioSessionManager2::GetSessionEnumerator, vtable slot 5.
	if _, err := comCall(sessionManager, 5, uintptr(unsafe.Pointer(&sessionEnumerator))); err != nil {
		return nil, err
	}
	defer comRelease(sessionEnumerator)

	var count int32
	// IAudioSessionEnumerator::GetCount, vtable slot 3.
	if _, err := comCall(sessionEnumerator, 3, uintptr(unsafe.Pointer(&count))); err != nil {
		return nil, err
	}

	sessions := make([]*audioSession, 0, count)
	for i := int32(0); i < count; i++ {
		var control unsafe.Pointer
		// IAudioSessionEnumerator::GetSession, vtable slot 4.
		if _, err := comCall(sessionEnumerator, 4, uintptr(i), uintptr(unsafe.Pointer(&control))); err != nil {
			continue
		}

		var control2 unsafe.Pointer
		// IUnknown::QueryInterface, vtable slot 0.
		if _, err := comCall(control, 0, uintptr(unsafe.Pointer(&iidIAudioSessionControl2)), uintptr(unsafe.Pointer(&control2))); err != nil {
			comRelease(control)
			continue
		}
		comRelease(control)

		var pid uint32
		// IAudioSessionControl2::GetProcessId, vtable slot 15.
		comCall(control2, 15, uintptr(unsafe.Pointer(&pid)))

		var simpleVolume unsafe.Pointer
		if _, err := comCall(control2, 0, uintptr(unsafe.Pointer(&iidISimpleAudioVolume)), uintptr(unsafe.Pointer(&simpleVolume))); err != nil {
			comRelease(control2)
			continue
		}
		comRelease(control2)

		sessions = append(sessions, &audioSession{ptr: simpleVolume, pid: pid})
	}
	return sessions, nil
}

func comGetMasterVolume(simpleVolume unsafe.Pointer) (float32, error) {
	var vol float32
	// ISimpleAudioVolume::GetMasterVolume, vtable slot 4.
	if _, err := comCall(simpleVolume, 4, uintptr(unsafe.Pointer(&vol))); err != nil {
		return 0, err
	}
	return vol, nil
}

func comSetMasterVolume(simpleVolume unsafe.Pointer, v float32) error {
	// ISimpleAudioVolume::SetMasterVolume, vtable slot 3.
	_, err := comCall(simpleVolume, 3, uintptr(unsafe.Pointer(&v)), 0)
	return err
}

var (
	ole32CoCreate = ole32.NewProc("CoCreateInstance")
)

func coCreateInstance(clsid, iid *windows.GUID, out *unsafe.Pointer) error {
	r, _, _ := ole32CoCreate.Call(
		uintptr(unsafe.Pointer(clsid)),
		0,
		uintptr(clsctxInprocServer),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(out)),
	)
	if int32(r) < 0 {
		return syscall.Errno(r)
	}
	return nil
}
