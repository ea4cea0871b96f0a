// Package duck implements the Ducker: lower/restore the volume of every
// other output stream around playback.
//
// Grounded on agenttalk/audio_duck.py's algorithm (snapshot-then-halve,
// restore-then-clear, self-process exclusion, all errors swallowed).
package duck

// Ducker lowers other output streams' volume during playback and restores
// them afterward. Implementations never panic or return an error — every
// failure is swallowed (§4.3 invariant); the Windows implementation does
// not log them.
type Ducker interface {
	// Duck snapshots the current volume of every other output stream and
	// sets each to 50%.
	Duck()
	// Unduck restores exactly the snapshotted volumes and clears the
	// snapshot set. Safe to call when nothing is snapshotted (idempotent).
	Unduck()
	// IsDucked reports whether a snapshot is pending restoration.
	IsDucked() bool
}
