//go:build !windows

package duck

// noopDucker satisfies the Ducker contract on platforms with no Core Audio
// session API: the contract holds (duck/unduck/is_ducked all behave
// correctly) but no audio is altered (§4.3 "Non-Windows platforms use a
// no-op variant").
type noopDucker struct{}

// New returns the platform Ducker. On non-Windows platforms this is a
// no-op that still satisfies every invariant in §4.3.
func New() Ducker { return &noopDucker{} }

func (d *noopDucker) Duck()          {}
func (d *noopDucker) Unduck()        {}
func (d *noopDucker) IsDucked() bool { return false }
