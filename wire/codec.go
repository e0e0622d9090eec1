package wire

import (
	"errors"
	"fmt"

	"github.com/fieldradio/iwab/pcm"
)

// MaxFrame is the maximum wire size of a single frame, including every
// header and the FCS trailer.
const MaxFrame = 1600

// HeaderOverhead is the combined size of the radiotap preamble, the dot11
// QoS data header, the iwab application header and the trailing FCS:
// everything in a frame that isn't payload. Callers sizing a render chunk
// must cap it at MaxFrame-HeaderOverhead, not MaxFrame itself.
const HeaderOverhead = radiotapHeaderLen + dot11HeaderLen + AppHeaderSize + fcsTrailerSize

const fcsTrailerSize = 4

// ErrAgain is returned by Read when no valid iwab frame is available yet:
// either the socket had nothing to read, or the received bytes failed one
// of the frame-validity checks. Both cases mean "try later"; use errors.As
// to recover the specific reason for logging/counters.
var ErrAgain = errors.New("wire: no valid iwab frame available")

// ErrTransientRead is returned by Read when the underlying syscall was
// interrupted (EINTR). The caller should retry the read immediately,
// within the same tick, rather than waiting for the next poll.
var ErrTransientRead = errors.New("wire: transient interrupted read")

// FrameError reports why a received buffer was rejected by Read. It wraps
// ErrAgain so callers that only care about "try later" can use
// errors.Is(err, ErrAgain).
type FrameError struct {
	Reason string
	Err    error // underlying cause, if any (e.g. ErrShortDot11)
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: malformed frame: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("wire: malformed frame: %s", e.Reason)
}

func (e *FrameError) Unwrap() error { return ErrAgain }

func malformed(reason string, err error) *FrameError {
	return &FrameError{Reason: reason, Err: err}
}

// Transport is the minimal link-layer datagram interface Codec rides on.
// Production code uses the AF_PACKET raw socket in socket_linux.go; tests
// and the toxiproxy-fronted integration harness use an in-process or
// TCP-backed implementation.
type Transport interface {
	// SendVec performs a single scatter-gather write of bufs, in order,
	// and returns the total number of bytes handed to the kernel.
	SendVec(bufs [][]byte) (int, error)
	// Recv reads one link-layer frame into buf, returning the number of
	// bytes received.
	Recv(buf []byte) (int, error)
	// Close releases the underlying socket. Idempotent.
	Close() error
}

// Config configures a Codec's header stack.
type Config struct {
	// GroupMAC is the 6-byte multicast destination address placed in all
	// three dot11 address fields on send, and required to match on
	// receive.
	GroupMAC [6]byte

	// MCSIndex selects the PHY rate/coding stamped into the TX radiotap
	// preamble. Configurable rather than hard-coded, since the right rate
	// depends on the deployment's link budget.
	MCSIndex uint8

	// SampleSpec is the audio sample spec payloads are expected to be
	// aligned to; used by Read's size validation.
	SampleSpec pcm.Spec
}

// Codec assembles and parses the radiotap + dot11-QoS + iwab application
// header stack around an opaque payload, on top of a Transport. A Codec is
// not safe for concurrent use: it is owned by exactly one engine running on
// exactly one goroutine.
type Codec struct {
	cfg Config
	t   Transport

	seq        uint32 // iwab app-header sequence; pre-incremented, starts at 1.
	dot11SeqNo uint16 // unrelated 802.11 sequence/fragment counter.

	rtBuf  [radiotapHeaderLen]byte
	dotBuf [dot11HeaderLen]byte
	appBuf [AppHeaderSize]byte
}

// NewCodec wraps an already-open Transport in a Codec. Most callers should
// use Open, which also opens the underlying raw socket.
func NewCodec(t Transport, cfg Config) *Codec {
	return &Codec{cfg: cfg, t: t}
}

// Close closes the underlying transport. Idempotent after a failed Open.
func (c *Codec) Close() error {
	if c.t == nil {
		return nil
	}
	return c.t.Close()
}

// Send stamps the app header (incrementing Seq iff !retry), and sends
// radiotap + dot11-QoS + app header + payload as a single scatter-gather
// write.
//
// Retries reuse the same payload bytes with only the app header patched:
// callers must pass the primary's timestamp, not the retry's wall clock, so
// a receiver can tell a retransmission from a new sample.
func (c *Codec) Send(payload []byte, timestamp uint64, retry bool) (int, error) {
	if !retry {
		c.seq++
		c.dot11SeqNo++
	}
	hdr := AppHeader{
		Version:   AppVersion,
		Length:    uint16(len(payload)),
		Seq:       c.seq,
		Timestamp: timestamp,
		Retry:     boolToU8(retry),
	}
	hdr.Encode(c.appBuf[:])

	rt := buildRadiotap(c.rtBuf[:], c.cfg.MCSIndex)
	dot := buildDot11(c.dotBuf[:], c.cfg.GroupMAC, c.dot11SeqNo)

	return c.t.SendVec([][]byte{rt, dot, c.appBuf[:], payload})
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Read receives one link-layer frame into buf and parses it, returning the
// app header and the payload's [offset, offset+length) range within buf.
// The payload range excludes the trailing 4-byte FCS.
//
// On failure, Read returns ErrTransientRead (retry immediately, same tick)
// or a *FrameError wrapping ErrAgain (no valid frame this time, resume
// polling) depending on what went wrong.
func (c *Codec) Read(buf []byte) (hdr AppHeader, payloadOffset, payloadLen int, err error) {
	n, err := c.t.Recv(buf)
	if err != nil {
		if isEINTR(err) {
			return AppHeader{}, 0, 0, ErrTransientRead
		}
		if isEAGAIN(err) {
			return AppHeader{}, 0, 0, malformed("no data available", err)
		}
		return AppHeader{}, 0, 0, err
	}

	rtLen, rerr := radiotapLength(buf[:n])
	if rerr != nil {
		return AppHeader{}, 0, 0, malformed("short radiotap preamble", rerr)
	}
	if n < rtLen+dot11HeaderLen {
		return AppHeader{}, 0, 0, malformed("received length does not cover radiotap+dot11", nil)
	}

	_, derr := parseDot11(buf[rtLen:rtLen+dot11HeaderLen], c.cfg.GroupMAC)
	if derr != nil {
		return AppHeader{}, 0, 0, malformed("dot11 header rejected", derr)
	}

	minPayload := c.cfg.SampleSpec.FrameSize()
	if minPayload <= 0 {
		minPayload = 1
	}
	remaining := n - rtLen - dot11HeaderLen
	if remaining < AppHeaderSize+minPayload+fcsTrailerSize {
		return AppHeader{}, 0, 0, malformed("remainder too short for app header + aligned sample + FCS", nil)
	}

	appStart := rtLen + dot11HeaderLen
	hdr, herr := DecodeAppHeader(buf[appStart:])
	if herr != nil {
		return AppHeader{}, 0, 0, malformed("short app header", herr)
	}
	if hdr.Version != AppVersion {
		return AppHeader{}, 0, 0, malformed(fmt.Sprintf("unsupported app version %d", hdr.Version), nil)
	}

	payloadOffset = appStart + AppHeaderSize
	payloadLen = n - payloadOffset - fcsTrailerSize // exclude trailing FCS.

	return hdr, payloadOffset, payloadLen, nil
}
