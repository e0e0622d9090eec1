// Package pcm provides the audio sample spec used to convert between a
// duration of audio and a number of wire bytes, and back.
//
// The conversions here are shared by the transmit engine (render a chunk of
// block_usec duration into bytes), the receive engine (turn a gap between
// two timestamps into a number of filler bytes) and the receive daemon
// (sizing its jitter queue and silence buffer).
package pcm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Format identifies a PCM sample encoding.
type Format int

const (
	// Unknown represents an unrecognised sample format.
	Unknown Format = iota
	// S16LE is 16-bit signed little-endian PCM.
	S16LE
)

// String returns the string representation of a Format.
func (f Format) String() string {
	switch f {
	case S16LE:
		return "S16LE"
	default:
		return "unknown"
	}
}

// BytesPerSample returns the number of bytes occupied by one sample of f, or
// 0 if f is not a recognised format.
func (f Format) BytesPerSample() int {
	switch f {
	case S16LE:
		return 2
	default:
		return 0
	}
}

// Spec describes the wire audio format that sender and receiver must agree
// on out of band. The current wire default is {S16LE, 44100, 2}.
type Spec struct {
	Format   Format
	Rate     uint32 // Hz.
	Channels uint8
}

// Default is the current wire default sample spec.
var Default = Spec{Format: S16LE, Rate: 44100, Channels: 2}

// Validate returns an error describing the first invalid field found, or
// nil if s is usable.
func (s Spec) Validate() error {
	if s.Format.BytesPerSample() == 0 {
		return errors.Errorf("pcm: unhandled sample format %v", s.Format)
	}
	if s.Rate == 0 {
		return errors.New("pcm: sample rate must be non-zero")
	}
	if s.Channels == 0 {
		return errors.New("pcm: channel count must be non-zero")
	}
	return nil
}

// FrameSize returns the number of bytes occupied by one frame-aligned sample
// set, i.e. channels * bytes per sample.
func (s Spec) FrameSize() int {
	return int(s.Channels) * s.Format.BytesPerSample()
}

// Aligned reports whether n is a whole number of frame-aligned samples.
func (s Spec) Aligned(n int) bool {
	fs := s.FrameSize()
	return fs > 0 && n%fs == 0
}

// BytesPerSec returns the byte rate implied by s, e.g. 176400 for
// {S16LE, 44100, 2}.
func (s Spec) BytesPerSec() int {
	return int(s.Rate) * s.FrameSize()
}

// UsecToBytes converts a duration in microseconds to a number of bytes,
// rounded down to the nearest frame-aligned boundary.
func (s Spec) UsecToBytes(usec int64) int {
	if usec <= 0 {
		return 0
	}
	bps := s.BytesPerSec()
	n := int64(bps) * usec / 1e6
	fs := int64(s.FrameSize())
	if fs == 0 {
		return 0
	}
	return int(n / fs * fs)
}

// BytesToUsec converts a number of bytes to a duration in microseconds.
func (s Spec) BytesToUsec(n int) int64 {
	bps := s.BytesPerSec()
	if bps == 0 {
		return 0
	}
	return int64(n) * 1e6 / int64(bps)
}

// Duration is a convenience alias for BytesToUsec returning a
// human-printable string, used in log messages.
func (s Spec) Duration(n int) string {
	return fmt.Sprintf("%dus", s.BytesToUsec(n))
}
