// Package wire implements the radiotap + 802.11 QoS-data + iwab application
// header stack that every frame on the link is wrapped in, and the raw
// link-layer socket the stack rides on.
//
// wire is a synchronous, stateless-per-call encoder/decoder: nothing here
// blocks or spans goroutines. The transmit and receive engines own the
// timing and concurrency discipline; wire only turns (payload, header
// fields) into bytes and back.
package wire

import (
	"encoding/binary"
	"errors"
)

// AppHeaderSize is the fixed, 16-byte, little-endian iwab application
// header size: version(1) + length(2) + seq(4) + timestamp(8) + retry(1).
// The fields fill all 16 bytes; no padding bytes are carried.
const AppHeaderSize = 16

// AppVersion is the only application header version this codec speaks.
const AppVersion = 0

// AppHeader is the fixed application header carried after the dot11-QoS
// header and before the payload.
type AppHeader struct {
	Version   uint8
	Length    uint16 // payload_bytes.len()
	Seq       uint32 // monotonic across primary sends, wraps at 2^32
	Timestamp uint64 // microseconds since an arbitrary sender epoch
	Retry     uint8  // 0 for a primary send, 1 for its retransmission
}

// Encode writes h into buf, which must be at least AppHeaderSize bytes.
// Every one of the first AppHeaderSize bytes is overwritten, so a reused
// send buffer never leaks stale header bytes onto the wire; bytes past
// AppHeaderSize are not touched.
func (h AppHeader) Encode(buf []byte) {
	_ = buf[AppHeaderSize-1] // bounds check hint
	buf[0] = h.Version
	binary.LittleEndian.PutUint16(buf[1:3], h.Length)
	binary.LittleEndian.PutUint32(buf[3:7], h.Seq)
	binary.LittleEndian.PutUint64(buf[7:15], h.Timestamp)
	buf[15] = h.Retry
}

// ErrShortHeader is returned by DecodeAppHeader when buf is too short to
// hold an application header.
var ErrShortHeader = errors.New("wire: buffer too short for app header")

// DecodeAppHeader parses an AppHeader from the front of buf.
func DecodeAppHeader(buf []byte) (AppHeader, error) {
	if len(buf) < AppHeaderSize {
		return AppHeader{}, ErrShortHeader
	}
	return AppHeader{
		Version:   buf[0],
		Length:    binary.LittleEndian.Uint16(buf[1:3]),
		Seq:       binary.LittleEndian.Uint32(buf[3:7]),
		Timestamp: binary.LittleEndian.Uint64(buf[7:15]),
		Retry:     buf[15],
	}, nil
}
