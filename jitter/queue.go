// Package jitter provides a bounded FIFO byte queue that absorbs arrival
// jitter between the receive engine and the host audio mixer's pull
// cadence.
//
// A Queue is a ring buffer over raw PCM bytes, modelled on the
// ring-buffer discipline of github.com/ausocean/utils/pool.Buffer, but
// with a push/pop/rewind/flush contract rather than pool.Buffer's
// chunk-object API.
package jitter

import (
	"errors"
)

// ErrOverrun is returned by Push when accepting chunk would exceed
// max_bytes. The chunk is dropped; existing contents are untouched.
var ErrOverrun = errors.New("jitter: queue at capacity, chunk dropped")

// ErrUnderrun is returned by Pop when the queue is empty.
var ErrUnderrun = errors.New("jitter: queue empty")

// Config configures a Queue. All fields are byte counts and should be
// sample-aligned by the caller.
type Config struct {
	MaxBytes    int // hard cap
	TargetBytes int // nominal fill, informational; not read by Queue
	PrebufBytes int // fill level that sets Primed; Pop does not wait for it
	MinReqBytes int // informational; Pop does not enforce a minimum and may return fewer bytes
	Silence     []byte // filler content for gap-fill callers; not interpreted by Queue itself
}

// Queue is a bounded FIFO of PCM bytes. It is not safe for concurrent use;
// callers synchronise push and pop through the surrounding engine's
// single-threaded discipline.
type Queue struct {
	cfg Config

	buf  []byte // ring storage, capacity == cfg.MaxBytes
	r, w int     // read and write cursors into buf, mod len(buf)
	n    int     // number of valid bytes currently buffered

	// history tracks bytes already popped but not yet overwritten by new
	// writes, so Rewind can move the read cursor backward into them.
	history int

	primed bool // true once n has reached PrebufBytes at least once
}

// New returns a Queue configured per cfg.
func New(cfg Config) *Queue {
	if cfg.MaxBytes <= 0 {
		panic("jitter: MaxBytes must be positive")
	}
	return &Queue{cfg: cfg, buf: make([]byte, cfg.MaxBytes)}
}

// Len returns the number of bytes currently buffered.
func (q *Queue) Len() int { return q.n }

// MaxBytes returns the queue's hard cap.
func (q *Queue) MaxBytes() int { return cap(q.buf) }

// Primed reports whether the queue has ever reached PrebufBytes since the
// last flush, i.e. whether the mixer should be served.
func (q *Queue) Primed() bool { return q.primed }

// Push appends chunk to the tail. It fails with ErrOverrun if
// len(chunk) + q.Len() > MaxBytes; on overrun the chunk is dropped and
// existing contents are left untouched.
func (q *Queue) Push(chunk []byte) error {
	if q.n+len(chunk) > cap(q.buf) {
		return ErrOverrun
	}

	// A write lands first in free (never-written-since-last-pop) space;
	// only once that's exhausted does it start overwriting
	// popped-but-not-yet-overwritten history, shrinking what Rewind can
	// recover.
	free := cap(q.buf) - q.n - q.history
	if overwritten := len(chunk) - free; overwritten > 0 {
		q.history -= overwritten
		if q.history < 0 {
			q.history = 0
		}
	}

	for _, b := range chunk {
		q.buf[q.w] = b
		q.w = (q.w + 1) % len(q.buf)
	}
	q.n += len(chunk)
	if q.n >= q.cfg.PrebufBytes {
		q.primed = true
	}
	return nil
}

// Pop returns up to requestLen contiguous bytes from the head. It may
// return fewer bytes than requested if that's all that's buffered, but
// never zero bytes on success. Pop fails with ErrUnderrun if the queue is
// empty.
func (q *Queue) Pop(requestLen int) ([]byte, error) {
	if q.n == 0 {
		return nil, ErrUnderrun
	}
	n := requestLen
	if n > q.n {
		n = q.n
	}
	out := make([]byte, n)
	r := q.r
	for i := 0; i < n; i++ {
		out[i] = q.buf[r]
		r = (r + 1) % len(q.buf)
	}
	q.r = r
	q.n -= n
	q.history += n
	if q.history > cap(q.buf)-q.n {
		q.history = cap(q.buf) - q.n
	}
	return out, nil
}

// Rewind moves the read cursor backward by up to n bytes, bounded by
// buffered-but-not-yet-overwritten history. It returns the number of bytes
// actually rewound.
func (q *Queue) Rewind(n int) int {
	if n > q.history {
		n = q.history
	}
	if n <= 0 {
		return 0
	}
	q.r = (q.r - n + len(q.buf)) % len(q.buf)
	q.n += n
	q.history -= n
	return n
}

// FlushRead discards all queued bytes without disturbing the writer's
// cursor position for subsequent pushes: the next Push continues writing
// where it left off, but a reader starting fresh sees an empty queue.
func (q *Queue) FlushRead() {
	q.r = q.w
	q.n = 0
	q.history = 0
	q.primed = false
}
