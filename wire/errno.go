package wire

import "syscall"

// isEINTR reports whether err is the underlying syscall being interrupted,
// which Codec.Read treats as transient: retry immediately, same tick.
func isEINTR(err error) bool {
	return err == syscall.EINTR
}

// isEAGAIN reports whether err means "no data available right now" on a
// non-blocking socket.
func isEAGAIN(err error) bool {
	return err == syscall.EAGAIN || err == syscall.EWOULDBLOCK
}
