package receive

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Stats is the set of externally visible properties the receive engine
// publishes on its consuming sink once per stat window.
type Stats struct {
	LostMsPerS         float64
	UnderrunMsPerS     float64
	OverrunMsPerS      float64
	AvgQueueFillChunks float64
}

// fillSampler accumulates queue-fill samples (in chunks, i.e. JQ bytes
// divided by the byte count requested by the pop being recorded) across a
// stat window so the window can report a mean rather than a single
// snapshot.
type fillSampler struct {
	samples []float64
}

func (f *fillSampler) add(queueBytes, chunkBytes int) {
	if chunkBytes <= 0 {
		return
	}
	f.samples = append(f.samples, float64(queueBytes)/float64(chunkBytes))
}

func (f *fillSampler) mean() float64 {
	if len(f.samples) == 0 {
		return 0
	}
	return stat.Mean(f.samples, nil)
}

func (f *fillSampler) reset() {
	f.samples = f.samples[:0]
}

// snapshot computes the published Stats for the window that ran from
// s.windowOpenedAt to now, given the fill samples collected over it.
func snapshot(s *State, fills *fillSampler, now time.Time) Stats {
	elapsed := now.Sub(s.windowOpenedAt).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	return Stats{
		LostMsPerS:         usecToMsPerSec(s.LostUsec, elapsed),
		UnderrunMsPerS:     usecToMsPerSec(s.UnderrunUsec, elapsed),
		OverrunMsPerS:      usecToMsPerSec(s.OverrunUsec, elapsed),
		AvgQueueFillChunks: fills.mean(),
	}
}

func usecToMsPerSec(usec int64, elapsedSeconds float64) float64 {
	ms := float64(usec) / 1000
	return ms / elapsedSeconds
}
