// Package receive turns a stream of parsed iwab frames into monotonically
// timed PCM bytes in a jitter queue, classifying each frame against
// sequence/timestamp state and filling gaps left by loss.
package receive

import (
	"errors"
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/fieldradio/iwab/jitter"
	"github.com/fieldradio/iwab/pcm"
	"github.com/fieldradio/iwab/wire"
)

// Consumer is the host-side contract an Engine drives: the sink input that
// owns the jitter queue on the playback side. An Engine never pops the
// queue itself; it only pushes and, via Cork/Resume, tells the consumer
// when to stop or start pulling.
type Consumer interface {
	// Cork suspends playback pulls. Called when sustained underrun or a
	// silent link crosses a threshold.
	Cork()
	// Resume un-suspends playback after a valid frame arrives on a
	// previously corked link.
	Resume()
	// PublishStats is called once per stat window with the window's
	// summary counters.
	PublishStats(Stats)
}

// Config configures an Engine's timing and policy thresholds.
type Config struct {
	SampleSpec pcm.Spec

	// IdleTimeout corks the link if no frame that passes the codec's header
	// checks arrives for this long; frames the codec rejects (wrong type,
	// address mismatch, too short) do not reset the timer. Default 20s.
	IdleTimeout time.Duration

	// UnderrunCorkThreshold is the cumulative underrun duration within a
	// stat window that triggers a cork request. Default 500ms.
	UnderrunCorkThreshold time.Duration

	// StatPeriod is how often Stats are computed and published. Default 10s.
	StatPeriod time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 20 * time.Second
	}
	if c.UnderrunCorkThreshold <= 0 {
		c.UnderrunCorkThreshold = 500 * time.Millisecond
	}
	if c.StatPeriod <= 0 {
		c.StatPeriod = 10 * time.Second
	}
	return c
}

// Engine implements the receive-side reconstruction pipeline. It is owned
// by exactly one goroutine; none of its methods are safe to call
// concurrently.
type Engine struct {
	cfg   Config
	codec *wire.Codec
	jq    *jitter.Queue
	log   logging.Logger
	sink  Consumer

	state       *State
	fills       fillSampler
	lastFrameAt time.Time
	corked      bool
	statsAt     time.Time
}

// NewEngine returns an Engine reading frames from codec, pushing payload
// bytes into jq, and reporting cork/resume/stats requests to sink.
func NewEngine(codec *wire.Codec, jq *jitter.Queue, cfg Config, log logging.Logger, sink Consumer) *Engine {
	now := time.Now()
	return &Engine{
		cfg:         cfg.withDefaults(),
		codec:       codec,
		jq:          jq,
		log:         log,
		sink:        sink,
		state:       NewState(now),
		lastFrameAt: now,
		statsAt:     now,
	}
}

// OnReadable drains every frame currently available on the underlying
// transport, classifying and enqueueing each one. It returns on the first
// ErrAgain (nothing more to read right now) or hard error. buf is reused
// across reads and must be at least wire.MaxFrame bytes.
func (e *Engine) OnReadable(buf []byte, now time.Time) error {
	for {
		hdr, off, n, err := e.codec.Read(buf)
		if err == nil {
			e.ingest(hdr, buf[off:off+n], now)
			continue
		}
		if errors.Is(err, wire.ErrTransientRead) {
			continue // retry immediately, within this tick.
		}
		var fe *wire.FrameError
		if errors.As(err, &fe) {
			e.log.Debug("dropping malformed frame", "reason", fe.Reason)
			return nil // AGAIN: no valid frame this time, resume polling.
		}
		return err // hard error: interface gone, etc.
	}
}

// Tick performs time-driven bookkeeping not triggered by a frame arrival:
// the idle-link cork check and the periodic stats publish. Callers should
// invoke it roughly once per poll-loop iteration.
func (e *Engine) Tick(now time.Time) {
	if !e.corked && now.Sub(e.lastFrameAt) >= e.cfg.IdleTimeout {
		e.log.Warning("no frames received within idle timeout, corking", "timeout", e.cfg.IdleTimeout)
		e.corked = true
		e.sink.Cork()
	}
	if now.Sub(e.statsAt) >= e.cfg.StatPeriod {
		e.sink.PublishStats(snapshot(e.state, &e.fills, now))
		e.state.resetWindow(now)
		e.fills.reset()
		e.statsAt = now
	}
}

// RecordPopResult is called by the consuming sink input after each jitter
// queue pop, so the engine can track cumulative underrun within the
// current stat window and decide whether to cork.
func (e *Engine) RecordPopResult(err error, requestedBytes int) {
	e.fills.add(e.jq.Len(), requestedBytes)
	if err == nil {
		return
	}
	usec := e.cfg.SampleSpec.BytesToUsec(requestedBytes)
	e.state.UnderrunUsec += usec
	if !e.corked && e.state.UnderrunUsec >= e.cfg.UnderrunCorkThreshold.Microseconds() {
		e.log.Warning("sustained underrun, corking", "underrunUsec", e.state.UnderrunUsec)
		e.corked = true
		e.sink.Cork()
	}
}

// ingest classifies a single parsed frame and applies its effect on the
// jitter queue and receive state. The priority order below matches the
// first-matching-rule discipline: duplicate, reordered-older, stale
// timestamp, gap, in-order.
func (e *Engine) ingest(hdr wire.AppHeader, payload []byte, now time.Time) {
	e.lastFrameAt = now

	if !e.cfg.SampleSpec.Aligned(len(payload)) {
		e.log.Debug("dropping unaligned payload", "length", len(payload))
		return
	}

	s := e.state

	if e.corked {
		// Sequence/timestamp tracking is cleared on resume, so this frame
		// is admitted without gap fill.
		e.corked = false
		s.LastSeq = 0
		s.LastPlaybackTS = 0
		e.sink.Resume()
	}

	if hdr.Seq == s.LastSeq {
		s.Duplicates++
		return
	}

	if s.LastSeq != 0 && hdr.Seq < s.LastSeq {
		e.log.Info("sequence regressed, resetting receive state", "seq", hdr.Seq, "lastSeq", s.LastSeq)
		s.reset()
		return
	}

	if s.LastPlaybackTS != 0 && hdr.Timestamp < s.LastPlaybackTS {
		e.log.Debug("dropping stale-timestamp frame", "timestamp", hdr.Timestamp, "lastPlaybackTS", s.LastPlaybackTS)
		return
	}

	if s.LastSeq != 0 && hdr.Seq != s.LastSeq+1 {
		e.fillGap(hdr, payload, now)
		s.Gaps++
	}

	if s.LastSeq == 0 {
		if s.Fresh {
			e.log.Debug("admitting first frame", "seq", hdr.Seq)
		} else {
			e.log.Debug("admitting first frame after restart, no gap fill", "seq", hdr.Seq)
		}
	}

	e.push(payload, now)
	s.Fresh = false
	s.LastSeq = hdr.Seq
	s.LastPlaybackTS = hdr.Timestamp + uint64(e.cfg.SampleSpec.BytesToUsec(len(payload)))
}

// fillGap inserts filler bytes, copies of payload truncated or repeated to
// exactly cover the missing duration, ahead of payload itself.
func (e *Engine) fillGap(hdr wire.AppHeader, payload []byte, now time.Time) {
	missingUsec := int64(hdr.Timestamp) - int64(e.state.LastPlaybackTS)
	if missingUsec <= 0 {
		return
	}
	missingBytes := e.cfg.SampleSpec.UsecToBytes(missingUsec)
	e.state.LostUsec += missingUsec

	filler := make([]byte, missingBytes)
	for off := 0; off < missingBytes; off += len(payload) {
		n := copy(filler[off:], payload)
		if n == 0 {
			break
		}
	}
	e.push(filler, now)
}

// push attempts to enqueue b, tracking overrun duration on failure. An
// overrun drops b without corrupting the queue's existing contents.
func (e *Engine) push(b []byte, now time.Time) {
	if err := e.jq.Push(b); err != nil {
		e.state.OverrunUsec += e.cfg.SampleSpec.BytesToUsec(len(b))
		e.log.Debug("jitter queue overrun, dropping chunk", "bytes", len(b))
	}
}
