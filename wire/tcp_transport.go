package wire

import (
	"encoding/binary"
	"io"
	"net"
)

// tcpTransport is a length-prefixed Transport over a stream connection,
// used by the toxiproxy-fronted integration harness: toxiproxy proxies
// TCP, not raw 802.11 frames, so integration tests exercise the same
// Codec/Transport contract over a lossy/latent TCP link instead of a real
// wireless NIC.
type tcpTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps an established net.Conn as a Transport, framing
// each SendVec/Recv call with a 4-byte length prefix.
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{conn: conn}
}

func (t *tcpTransport) SendVec(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	// A zeroed trailer stands in for the FCS a real NIC appends, as
	// pipeTransport does, since Codec.Read strips it from every frame.
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(total+fcsSize))
	if _, err := t.conn.Write(hdr[:]); err != nil {
		return 0, err
	}
	n := 0
	for _, b := range bufs {
		w, err := t.conn.Write(b)
		n += w
		if err != nil {
			return n, err
		}
	}
	if _, err := t.conn.Write(make([]byte, fcsSize)); err != nil {
		return n, err
	}
	return n, nil
}

func (t *tcpTransport) Recv(buf []byte) (int, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(t.conn, hdr[:]); err != nil {
		return 0, err
	}
	n := int(binary.BigEndian.Uint32(hdr[:]))
	if n > len(buf) {
		n = len(buf)
	}
	if _, err := io.ReadFull(t.conn, buf[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}
