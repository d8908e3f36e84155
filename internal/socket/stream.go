package socket

import (
	"fmt"
	"net"
	"sync/atomic"

	"github.com/harish-agr/network-lib/internal/eventbus"
	"github.com/harish-agr/network-lib/internal/sockerr"
)

// Stream is the buffered view over a socket handle: read/write/flush/
// available/close/path/seek-tell, the same surface for a TCP byte stream
// and a UDP message stream. Once its socket has been freed, calls on a
// Stream fail cleanly (Read/Write return 0, Flush returns nil, Close returns
// InvalidHandle) instead of panicking.
type Stream struct {
	manager *Manager
	handle  Handle
	path    string

	inorder    bool
	reliable   bool
	sequential bool

	transferred int64
}

// Stream builds the Stream view for h. Mirrors socket_stream: marks inorder
// and reliable for TCP, sequential-only for UDP, per stream_init.
func (m *Manager) Stream(h Handle) (*Stream, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return nil, err
	}
	s := &Stream{manager: m, handle: h}
	if rec.protocol == protoTCP {
		s.inorder = true
		s.reliable = true
		s.path = fmt.Sprintf("tcp://%d", uint64(h))
	} else {
		s.sequential = true
		s.path = fmt.Sprintf("udp://%d", uint64(h))
	}
	return s, nil
}

// Path returns the stream's protocol-tagged identity string.
func (s *Stream) Path() string { return s.path }

// InOrder, Reliable, Sequential report the stream flags fixed at stream_init.
func (s *Stream) InOrder() bool    { return s.inorder }
func (s *Stream) Reliable() bool   { return s.reliable }
func (s *Stream) Sequential() bool { return s.sequential }

// Tell returns the total byte count transferred (read + written) through
// this stream so far. Seek is a no-op: a socket has no random-access offset
// to reposition.
func (s *Stream) Tell() int64 { return atomic.LoadInt64(&s.transferred) }
func (s *Stream) Seek(int64) error { return nil }

func (s *Stream) base() (*socketRecord, *baseRecord) {
	rec, ok := s.manager.sockets.Get(s.handle)
	if !ok {
		return nil, nil
	}
	base := s.manager.resolveBase(rec)
	return rec, base
}

// Available reports how many already-buffered bytes Read can serve without
// a blocking refill.
func (s *Stream) Available() int {
	_, base := s.base()
	if base == nil {
		return 0
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	return base.readLength - base.readOffset
}

// Close closes the underlying socket. A Stream may be closed independent of
// Free; the socket record itself is only destroyed by Manager.Free.
func (s *Stream) Close() error {
	return s.manager.Close(s.handle)
}

// Read serves up to len(p) bytes, refilling from the OS when the internal
// buffer is exhausted. For TCP, refill is one recv of up to BUFSZ bytes;
// for UDP, refill is exactly one datagram. Returns (0, nil) on a clean
// peer close or on a freed/invalid handle, never an error for those cases.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rec, base := s.base()
	if rec == nil || base == nil {
		return 0, nil
	}

	base.mu.Lock()
	defer base.mu.Unlock()

	if base.readOffset >= base.readLength {
		if err := s.refillLocked(rec, base); err != nil {
			return 0, nil
		}
	}
	if base.readOffset >= base.readLength {
		return 0, nil
	}

	n := copy(p, base.readBuf[base.readOffset:base.readLength])
	base.readOffset += n
	atomic.AddInt64(&s.transferred, int64(n))
	return n, nil
}

// refillLocked must be called with base.mu held. On UDP it stores the
// sender as the stream's remembered peer even outside connected mode, so
// the next Flush is addressed to it. RecvFrom does not update that peer.
func (s *Stream) refillLocked(rec *socketRecord, base *baseRecord) error {
	base.ensureReadBuf()
	conn := base.activeConn()
	if conn == nil {
		return sockerr.ErrInvalidState
	}

	blocking := base.flags.has(FlagBlocking)
	deadline := deadlineFor(blocking, 0)
	_ = conn.SetReadDeadline(deadline)

	if base.protocol == protoUDP {
		udpConn := base.udpConn
		n, addr, err := udpConn.ReadFromUDP(base.readBuf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return sockerr.ErrWouldBlock
			}
			s.handlePeerGone(rec, base)
			return err
		}
		base.udpPeer = addr
		base.hasUDPPeer = true
		base.readOffset = 0
		base.readLength = n
		return nil
	}

	n, err := conn.Read(base.readBuf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return sockerr.ErrWouldBlock
		}
		s.handlePeerGone(rec, base)
		return err
	}
	base.readOffset = 0
	base.readLength = n
	if n == 0 {
		s.handlePeerGone(rec, base)
	}
	return nil
}

func (s *Stream) handlePeerGone(rec *socketRecord, base *baseRecord) {
	if base.hasLastEvent && base.lastEvent == eventbus.Hangup {
		return
	}
	base.lastEvent = eventbus.Hangup
	base.hasLastEvent = true
	s.manager.postEvent(eventbus.Hangup, s.handle)
}

// Write appends p to the write buffer, flushing whenever it fills. Returns
// the number of bytes accepted (buffered or sent), which is len(p) unless a
// flush needed to make room fails (a non-blocking flush that would block,
// or a peer that has gone away); the flush error itself is not returned.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rec, base := s.base()
	if rec == nil || base == nil {
		return 0, nil
	}

	base.mu.Lock()
	defer base.mu.Unlock()
	base.ensureWriteBuf()

	written := 0
	for written < len(p) {
		room := len(base.writeBuf) - base.writeLength
		if room == 0 {
			if err := s.flushLocked(rec, base); err != nil {
				return written, nil
			}
			room = len(base.writeBuf) - base.writeLength
			if room == 0 {
				break
			}
		}
		n := copy(base.writeBuf[base.writeLength:], p[written:])
		base.writeLength += n
		written += n
		atomic.AddInt64(&s.transferred, int64(n))
	}
	return written, nil
}

// Flush emits the write buffer: sends until drained for TCP, one datagram
// addressed to the remembered UDP peer (see refillLocked) for UDP. Blocks
// until fully drained in blocking mode.
func (s *Stream) Flush() error {
	rec, base := s.base()
	if rec == nil || base == nil {
		return nil
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	return s.flushLocked(rec, base)
}

// flushLocked must be called with base.mu held.
func (s *Stream) flushLocked(rec *socketRecord, base *baseRecord) error {
	if base.writeLength == 0 {
		return nil
	}
	conn := base.activeConn()
	if conn == nil {
		return sockerr.ErrInvalidState
	}

	blocking := base.flags.has(FlagBlocking)
	deadline := deadlineFor(blocking, 0)
	_ = conn.SetWriteDeadline(deadline)

	if base.protocol == protoUDP {
		if !base.hasUDPPeer {
			return sockerr.ErrInvalidState
		}
		if _, err := base.udpConn.WriteToUDP(base.writeBuf[:base.writeLength], base.udpPeer.(*net.UDPAddr)); err != nil {
			s.handlePeerGone(rec, base)
			return err
		}
		base.writeLength = 0
		return nil
	}

	total := 0
	for total < base.writeLength {
		n, err := conn.Write(base.writeBuf[total:base.writeLength])
		if n > 0 {
			total += n
		}
		if err != nil {
			copy(base.writeBuf, base.writeBuf[total:base.writeLength])
			base.writeLength -= total
			s.handlePeerGone(rec, base)
			return err
		}
	}
	base.writeLength = 0
	return nil
}
