//go:build linux || darwin || freebsd || netbsd || openbsd

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlReusable sets SO_REUSEADDR and SO_REUSEPORT on the raw
// socket before bind, so a listener can be rebound quickly after restart and
// multiple listener instances can shard accepts across a socket set. Wired
// as a net.ListenConfig.Control hook rather than the raw syscall.Socket path
// an older style would use.
func controlReusable(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if ctrlErr != nil {
			return
		}
		ctrlErr = setReusePort(int(fd))
	})
	if err != nil {
		return err
	}
	return ctrlErr
}
