// Package sink wraps the transmit and receive engines behind the thin
// pull/push contracts a host audio framework expects: a sink (render
// source) and a sink input (playback consumer). The only behavior added
// here beyond lifetime management is rewind-request forwarding to the
// jitter queue.
package sink

import (
	"time"

	"github.com/fieldradio/iwab/jitter"
	"github.com/fieldradio/iwab/transmit"
)

// SinkAdapter exposes a transmit.Engine as a pull-mode render source: the
// host calls Render to get the next chunk, GetLatency to know how soon,
// and UpdateRequestedLatency when its own buffering policy changes.
type SinkAdapter struct {
	engine *transmit.Engine
}

// NewSinkAdapter wraps engine for host consumption.
func NewSinkAdapter(engine *transmit.Engine) *SinkAdapter {
	return &SinkAdapter{engine: engine}
}

// Open starts the render cadence at now.
func (s *SinkAdapter) Open(now time.Time) { s.engine.Open(now) }

// Suspend stops rendering.
func (s *SinkAdapter) Suspend() { s.engine.Suspend() }

// Tick advances the underlying engine; see transmit.Engine.Tick.
func (s *SinkAdapter) Tick(now time.Time) (time.Time, bool, error) {
	return s.engine.Tick(now)
}

// GetLatency reports the latency contract to the host.
func (s *SinkAdapter) GetLatency(now time.Time) time.Duration {
	return s.engine.GetLatency(now)
}

// UpdateRequestedLatency forwards a host-driven latency change.
func (s *SinkAdapter) UpdateRequestedLatency(usec int64) {
	s.engine.UpdateRequestedLatency(usec)
}

// MaxRewind is always 0: a render source can't rewind what hasn't been
// rendered yet.
func (s *SinkAdapter) MaxRewind() int { return transmit.MaxRewind }

// jqPuller is the subset of jitter.Queue a sink input needs, named here so
// tests can substitute a fake without importing the concrete type.
type jqPuller interface {
	Pop(requestLen int) ([]byte, error)
	Rewind(n int) int
	FlushRead()
}

var _ jqPuller = (*jitter.Queue)(nil)
