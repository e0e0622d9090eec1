//go:build linux

package wire

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// minRecvBuf is the minimum SO_RCVBUF this codec requests on open.
const minRecvBuf = MaxFrame

// rawSocketTransport is the production Transport: an AF_PACKET SOCK_RAW
// socket bound to a monitor-mode interface's index, with the Codec itself
// prepending radiotap + dot11 + app header via scatter-gather.
type rawSocketTransport struct {
	fd int
}

// OpenRawSocket creates a raw link-layer socket, looks up iface's index,
// binds to it, sets the receive buffer to at least 1600 bytes, and puts
// the socket in non-blocking mode.
func OpenRawSocket(iface string) (Transport, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("wire: socket: %w", err)
	}

	idx, err := ifaceIndex(fd, iface)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wire: look up interface %q: %w", iface, err)
	}

	sa := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: idx}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wire: bind to interface %q: %w", iface, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, minRecvBuf); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wire: set SO_RCVBUF: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("wire: set non-blocking: %w", err)
	}

	return &rawSocketTransport{fd: fd}, nil
}

// Open opens a Codec on iface with the raw AF_PACKET transport.
func Open(iface string, cfg Config) (*Codec, error) {
	t, err := OpenRawSocket(iface)
	if err != nil {
		return nil, err
	}
	return NewCodec(t, cfg), nil
}

// ifreqIndex mirrors the kernel's struct ifreq, for the SIOCGIFINDEX ioctl:
// an interface name followed by the union slot holding ifr_ifindex.
type ifreqIndex struct {
	Name  [unix.IFNAMSIZ]byte
	Index int32
	_     [16 - 4]byte // pad to sizeof(struct ifreq).
}

// ifaceIndex looks up iface's interface index via SIOCGIFINDEX.
func ifaceIndex(fd int, iface string) (int, error) {
	if len(iface) >= unix.IFNAMSIZ {
		return 0, fmt.Errorf("interface name %q too long", iface)
	}
	var req ifreqIndex
	copy(req.Name[:], iface)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.SIOCGIFINDEX, uintptr(unsafe.Pointer(&req)))
	if errno != 0 {
		return 0, errno
	}
	return int(req.Index), nil
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// SendVec performs a single vectored write of bufs via writev.
func (t *rawSocketTransport) SendVec(bufs [][]byte) (int, error) {
	iovs := make([]unix.Iovec, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		iovs = append(iovs, unix.Iovec{Base: &b[0], Len: uint64(len(b))})
	}
	for {
		n, _, errno := unix.Syscall(unix.SYS_WRITEV, uintptr(t.fd), uintptr(unsafe.Pointer(&iovs[0])), uintptr(len(iovs)))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return 0, errno
		}
		return int(n), nil
	}
}

// Recv reads one link-layer frame into buf.
func (t *rawSocketTransport) Recv(buf []byte) (int, error) {
	n, err := unix.Read(t.fd, buf)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the socket. Idempotent.
func (t *rawSocketTransport) Close() error {
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}
