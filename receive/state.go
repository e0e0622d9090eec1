package receive

import "time"

// State is the receive engine's per-link classification state: the last
// sequence/timestamp seen, and the accumulators a stats window reports on.
// Reset to zero on a restart detection or a cork→resume transition.
type State struct {
	LastSeq        uint32
	LastPlaybackTS uint64 // microseconds, sender epoch

	// Fresh is true until the first frame is admitted. It lets the engine
	// distinguish "just reset" from "never received a frame", so the very
	// first frame after init doesn't log a spurious restart.
	Fresh bool

	Duplicates     int
	Resets         int
	Gaps           int
	LostUsec       int64
	OverrunUsec    int64
	UnderrunUsec   int64
	windowOpenedAt time.Time
}

// NewState returns a fresh receive state, ready to admit its first frame
// without gap-fill.
func NewState(now time.Time) *State {
	return &State{Fresh: true, windowOpenedAt: now}
}

// reset clears sequence/timestamp tracking on a detected restart, without
// touching the stats accumulators: a restart is not itself loss, and the
// stats window still wants to know it happened.
func (s *State) reset() {
	s.LastSeq = 0
	s.LastPlaybackTS = 0
	s.Resets++
}

// resetWindow zeroes the stats accumulators and opens a new window starting
// at now. Sequence/timestamp tracking is untouched.
func (s *State) resetWindow(now time.Time) {
	s.Duplicates = 0
	s.Gaps = 0
	s.LostUsec = 0
	s.OverrunUsec = 0
	s.UnderrunUsec = 0
	s.windowOpenedAt = now
}
