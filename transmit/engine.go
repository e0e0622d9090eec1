// Package transmit paces locally rendered audio onto the link at a steady
// wall-clock cadence, stamping each frame with a deterministic sequence and
// timestamp and retrying each primary exactly once, at the chunk's
// midpoint.
package transmit

import (
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/pcm"
	"github.com/fieldradio/iwab/wire"
)

// Renderer supplies PCM chunks on demand, standing in for the host mixer's
// pull-mode render callback. It must return at most maxBytes of
// frame-aligned PCM.
type Renderer interface {
	Render(maxBytes int) ([]byte, error)
}

// Host receives lifecycle requests the engine can't satisfy itself.
type Host interface {
	// RequestUnload reports an unrecoverable send failure. The host is
	// expected to tear the engine down; it must not call Tick again.
	RequestUnload(reason error)
}

// MaxRewind is always 0: this sink never honours rewind requests.
const MaxRewind = 0

// Config configures an Engine's render cadence.
type Config struct {
	SampleSpec pcm.Spec

	// BlockUsec is the nominal render chunk duration. Zero selects the
	// duration of a frame-aligned chunk sized to the largest payload that
	// still fits within wire.MaxFrame once header and FCS overhead is
	// reserved.
	BlockUsec int64

	// LatencyUpdateInterval is kept in the Engine's config with a default
	// of 5s. The Engine itself does not read it: the block size changes only
	// when the host calls UpdateRequestedLatency.
	LatencyUpdateInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BlockUsec <= 0 {
		maxPayload := wire.MaxFrame - wire.HeaderOverhead
		bytes := c.SampleSpec.FrameSize() * (maxPayload / c.SampleSpec.FrameSize())
		c.BlockUsec = c.SampleSpec.BytesToUsec(bytes)
	}
	if c.LatencyUpdateInterval <= 0 {
		c.LatencyUpdateInterval = 5 * time.Second
	}
	return c
}

// frameState is the per-frame state machine position: Idle → Rendered →
// PrimarySent → RetrySent → Idle, where RetrySent may be skipped if the
// retry window closes before Tick observes it.
type frameState int

const (
	frameIdle frameState = iota
	framePrimarySent
	frameRetrySent
)

// Engine implements the transmit timing loop. It is owned by exactly one
// goroutine; none of its methods are safe to call concurrently.
type Engine struct {
	cfg   Config
	codec *wire.Codec
	r     Renderer
	host  Host
	log   logging.Logger

	opened bool
	epoch  time.Time // reference point for app-header microsecond timestamps

	nextPrimaryDeadline time.Time
	retryDeadline       time.Time
	state               frameState
	sendTime            time.Time // when the current primary was sent
	chunkUsec           int64

	currentChunk     []byte
	currentTimestamp uint64
}

// NewEngine returns an Engine sending rendered chunks through codec.
func NewEngine(codec *wire.Codec, r Renderer, cfg Config, log logging.Logger, host Host) *Engine {
	return &Engine{cfg: cfg.withDefaults(), codec: codec, r: r, host: host, log: log}
}

// Open marks the engine ready to render starting at now, and sets the
// timestamp epoch frames are stamped relative to.
func (e *Engine) Open(now time.Time) {
	e.epoch = now
	e.opened = true
	e.nextPrimaryDeadline = now
	e.retryDeadline = now
	e.state = frameIdle
}

// Suspend stops rendering until Open is called again.
func (e *Engine) Suspend() {
	e.opened = false
}

// usec returns t expressed as microseconds since Open's epoch, the
// convention app-header timestamps use.
func (e *Engine) usec(t time.Time) uint64 {
	return uint64(t.Sub(e.epoch).Microseconds())
}

// Tick advances the state machine by at most one send and returns the
// wall-clock time the caller should next invoke Tick at (e.g. by arming a
// timer). If the engine isn't open, it returns ok=false and the caller
// should disable its timer.
func (e *Engine) Tick(now time.Time) (next time.Time, ok bool, err error) {
	if !e.opened {
		return time.Time{}, false, nil
	}

	if !now.Before(e.nextPrimaryDeadline) {
		return e.sendPrimary(now)
	}
	if e.state == framePrimarySent && !now.Before(e.retryDeadline) {
		return e.sendRetry(now)
	}
	if e.state == framePrimarySent && e.retryDeadline.Before(e.nextPrimaryDeadline) {
		return e.retryDeadline, true, nil
	}
	return e.nextPrimaryDeadline, true, nil
}

func (e *Engine) sendPrimary(now time.Time) (time.Time, bool, error) {
	maxBytes := e.cfg.SampleSpec.UsecToBytes(e.cfg.BlockUsec)
	maxPayload := wire.MaxFrame - wire.HeaderOverhead
	if maxBytes > maxPayload {
		fs := e.cfg.SampleSpec.FrameSize()
		maxBytes = (maxPayload / fs) * fs
	}
	chunk, err := e.r.Render(maxBytes)
	if err != nil {
		e.host.RequestUnload(err)
		return time.Time{}, false, err
	}

	ts := e.usec(e.nextPrimaryDeadline)
	if _, err := e.codec.Send(chunk, ts, false); err != nil {
		e.host.RequestUnload(err)
		return time.Time{}, false, err
	}

	e.currentChunk = chunk
	e.currentTimestamp = ts
	e.sendTime = e.nextPrimaryDeadline
	e.chunkUsec = e.cfg.SampleSpec.BytesToUsec(len(chunk))

	e.nextPrimaryDeadline = e.nextPrimaryDeadline.Add(time.Duration(e.chunkUsec) * time.Microsecond)

	e.state = framePrimarySent
	e.retryDeadline = e.sendTime.Add(time.Duration(e.chunkUsec/2) * time.Microsecond)
	return e.retryDeadline, true, nil
}

func (e *Engine) sendRetry(now time.Time) (time.Time, bool, error) {
	if _, err := e.codec.Send(e.currentChunk, e.currentTimestamp, true); err != nil {
		e.host.RequestUnload(err)
		return time.Time{}, false, err
	}
	e.state = frameRetrySent
	return e.nextPrimaryDeadline, true, nil
}

// GetLatency reports the host-visible latency contract: time until the
// next primary send, clamped to [0, BlockUsec].
func (e *Engine) GetLatency(now time.Time) time.Duration {
	d := e.nextPrimaryDeadline.Sub(now)
	ceiling := time.Duration(e.cfg.BlockUsec) * time.Microsecond
	if d < 0 {
		return 0
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// UpdateRequestedLatency recomputes the render chunk size from a new
// requested latency, mirroring the host's periodic latency renegotiation.
func (e *Engine) UpdateRequestedLatency(usec int64) {
	if usec <= 0 {
		maxPayload := wire.MaxFrame - wire.HeaderOverhead
		bytes := e.cfg.SampleSpec.FrameSize() * (maxPayload / e.cfg.SampleSpec.FrameSize())
		usec = e.cfg.SampleSpec.BytesToUsec(bytes)
		e.log.Warning("requested latency invalid, using frame-aligned default", "blockUsec", usec)
	}
	e.cfg.BlockUsec = usec
}

