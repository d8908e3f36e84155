//go:build unix

package poller

import "syscall"

// peekByte performs a single-byte, non-blocking MSG_PEEK recv on fd: it
// reports whether data is waiting without removing it from the socket's
// receive queue. n==0 with err==nil means the peer performed an orderly
// shutdown (the same signal a destructive zero-length read would give).
func peekByte(fd uintptr) (n int, err error) {
	var buf [1]byte
	n, _, err = syscall.Recvfrom(int(fd), buf[:], syscall.MSG_PEEK)
	return n, err
}

func isTemporaryPeekErr(err error) bool {
	return err == syscall.EAGAIN || err == syscall.EWOULDBLOCK
}
