//go:build !unix

package poller

import "errors"

// Non-unix platforms (notably Windows) have no portable, build-tag-free way
// to issue a raw MSG_PEEK recv through the standard syscall package here, so
// the portable poller degrades to readiness-blind on these platforms:
// Readable never fires in the background, but synchronous Stream.Read and
// RecvFrom calls are unaffected, and hangups are still discovered the first
// time the caller actually reads. A platform-specific backend (paralleling
// poller_epoll_linux.go / poller_kqueue_bsd.go) would remove this gap.
var errPeekUnsupported = errors.New("poller: readiness probing unsupported on this platform")

func peekByte(fd uintptr) (n int, err error) {
	return 0, errPeekUnsupported
}

func isTemporaryPeekErr(err error) bool {
	return err == errPeekUnsupported
}
