package wire

import (
	"encoding/binary"
	"errors"
)

// radiotap present-field bitmap bits that this codec cares about. The
// remaining bits of the radiotap namespace are never produced or consulted
// by this implementation.
const (
	radiotapFlags = 1 << 1
	radiotapMCS   = 1 << 19
	radiotapTXFlags = 1 << 15
)

// TX flag bits (radiotap TX_FLAGS field, 2 bytes, little-endian).
const (
	txFlagNoACK         = 1 << 3
	txFlagDontReorder   = 1 << 6 // NL80211_RXMGMT_FLAG/DONT_REORDER equivalent used by this link.
)

// MCS "known" bits and flags used in the 3-byte MCS argument.
const (
	mcsKnownFEC = 1 << 1
	mcsFlagLDPC = 1 << 1 // FEC type bit within the MCS flags byte: 1 = LDPC.
)

// radiotapHeaderLen is the length, in bytes, of the fixed radiotap
// preamble this codec builds on send: 8-byte radiotap_head + bitmap
// already counted, + 2 bytes TX_FLAGS + 3 bytes MCS args.
const radiotapHeaderLen = 8 + 2 + 3

// buildRadiotap renders the TX radiotap preamble into buf (which must be at
// least radiotapHeaderLen bytes): TX_FLAGS = NOACK|DONT_REORDER, and an MCS
// field with FEC=LDPC and the configured index.
func buildRadiotap(buf []byte, mcsIndex uint8) []byte {
	buf = buf[:radiotapHeaderLen]
	buf[0] = 0 // radiotap.version
	buf[1] = 0 // radiotap.pad
	binary.LittleEndian.PutUint16(buf[2:4], uint16(radiotapHeaderLen))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(radiotapTXFlags|radiotapMCS))

	binary.LittleEndian.PutUint16(buf[8:10], uint16(txFlagNoACK|txFlagDontReorder))

	buf[10] = mcsKnownFEC
	buf[11] = mcsFlagLDPC
	buf[12] = mcsIndex

	return buf
}

// ErrShortRadiotap is returned when a received frame is too short to
// contain even the radiotap_head.
var ErrShortRadiotap = errors.New("wire: buffer too short for radiotap head")

// radiotapLength returns the declared total length of the radiotap
// preamble at the front of buf, per the radiotap.length field. The
// receive side treats everything past the first 4 bytes as opaque and
// simply skips radiotapLength(buf) bytes.
func radiotapLength(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, ErrShortRadiotap
	}
	return int(binary.LittleEndian.Uint16(buf[2:4])), nil
}
