package wire

import (
	"encoding/binary"
	"errors"
)

// dot11HeaderLen is the fixed length of the 802.11 data-frame header this
// codec builds/parses: frame_ctl(2) + duration(2) + addr1/2/3(18) +
// seq/frag(2) + qos_ctrl(2).
const dot11HeaderLen = 2 + 2 + 18 + 2 + 2

// dataType/qosDataSubtype identify a QoS data frame: type=2 (data),
// subtype=8 (QoS data).
const (
	dataType      = 2
	qosDataSubtype = 8
)

// frameControl packs version/type/subtype/flags into the 16-bit dot11
// frame-control word via explicit shift/mask, never struct punning.
func frameControl(version, typ, subtype uint16, flags uint8) uint16 {
	return (version & 0x3) | (typ&0x3)<<2 | (subtype&0xf)<<4 | uint16(flags)<<8
}

// parseFrameControl extracts version, type, subtype and flags from a
// 16-bit dot11 frame-control word.
func parseFrameControl(fc uint16) (version, typ, subtype uint16, flags uint8) {
	version = fc & 0x3
	typ = (fc >> 2) & 0x3
	subtype = (fc >> 4) & 0xf
	flags = uint8(fc >> 8)
	return
}

// buildDot11 renders a QoS data-frame header into buf (which must be at
// least dot11HeaderLen bytes), with groupMAC repeated into all three
// address fields, as required by the configured multicast group.
func buildDot11(buf []byte, groupMAC [6]byte, seqNo uint16) []byte {
	buf = buf[:dot11HeaderLen]
	binary.LittleEndian.PutUint16(buf[0:2], frameControl(0, dataType, qosDataSubtype, 0))
	binary.LittleEndian.PutUint16(buf[2:4], 0) // duration
	copy(buf[4:10], groupMAC[:])
	copy(buf[10:16], groupMAC[:])
	copy(buf[16:22], groupMAC[:])
	binary.LittleEndian.PutUint16(buf[22:24], seqNo<<4) // frag_nb in low 4 bits, all zero here.
	binary.LittleEndian.PutUint16(buf[24:26], 0)        // qos_ctrl.
	return buf
}

// Errors returned while parsing a received dot11 header.
var (
	ErrShortDot11      = errors.New("wire: buffer too short for dot11 header")
	ErrWrongFrameType  = errors.New("wire: dot11 frame is not QoS data (type=2, subtype=8)")
	ErrAddressMismatch = errors.New("wire: dot11 address field does not match configured group MAC")
)

// dot11View is a read-only view over a received dot11 header, valid until
// the next Read on the same Codec.
type dot11View struct {
	frameCtl uint16
	addr1    [6]byte
	addr2    [6]byte
	addr3    [6]byte
}

// parseDot11 parses and validates a received dot11 header against the
// configured group MAC: wrong frame type or an address mismatch are both
// rejected.
func parseDot11(buf []byte, groupMAC [6]byte) (dot11View, error) {
	if len(buf) < dot11HeaderLen {
		return dot11View{}, ErrShortDot11
	}
	fc := binary.LittleEndian.Uint16(buf[0:2])
	_, typ, subtype, _ := parseFrameControl(fc)
	if typ != dataType || subtype != qosDataSubtype {
		return dot11View{}, ErrWrongFrameType
	}
	var v dot11View
	v.frameCtl = fc
	copy(v.addr1[:], buf[4:10])
	copy(v.addr2[:], buf[10:16])
	copy(v.addr3[:], buf[16:22])
	if v.addr1 != groupMAC || v.addr2 != groupMAC || v.addr3 != groupMAC {
		return dot11View{}, ErrAddressMismatch
	}
	return v, nil
}
