//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package socket

import "syscall"

// controlReusable is a no-op on platforms without a SO_REUSEPORT-style
// ListenConfig.Control hook wired in this module (Windows supports
// SO_REUSEADDR with different semantics than BSD sockets and is out of
// scope here).
func controlReusable(_, _ string, _ syscall.RawConn) error { return nil }
