package socket

import (
	"net"
	"time"

	"golang.org/x/net/netutil"

	"github.com/harish-agr/network-lib/internal/eventbus"
	"github.com/harish-agr/network-lib/internal/platform"
	"github.com/harish-agr/network-lib/internal/sockaddr"
	"github.com/harish-agr/network-lib/internal/sockerr"
	"github.com/harish-agr/network-lib/internal/socktab"
)

// Connect opens (if needed) and connects h to addr. timeout <= 0 means
// block until the OS completes or fails the connection; timeout > 0 bounds
// the wait, reporting Timeout if it elapses. UDP "connect" is a purely
// local operation: it records addr as the remembered peer for stream use
// without a wire handshake, since UDP has no connection to establish.
func (m *Manager) Connect(h Handle, addr sockaddr.Address, timeout time.Duration) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	base, err := m.ensureBase(rec)
	if err != nil {
		return err
	}

	if rec.protocol == protoUDP {
		return m.connectUDP(h, rec, base, addr)
	}
	return m.connectTCP(h, rec, base, addr, timeout)
}

func (m *Manager) connectTCP(h Handle, rec *socketRecord, base *baseRecord, addr sockaddr.Address, timeout time.Duration) error {
	base.mu.Lock()
	if base.state == Connected {
		base.mu.Unlock()
		return nil
	}
	base.state = Connecting
	base.mu.Unlock()

	dialer := net.Dialer{}
	if timeout > 0 {
		dialer.Timeout = timeout
	}
	conn, err := dialer.Dial(tcpNetwork(addr), addr.ToTCPAddr().String())

	base.mu.Lock()
	defer base.mu.Unlock()
	if err != nil {
		base.state = NotConnected
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return sockerr.ErrTimeout.WithHandle(uint64(h))
		}
		m.logger.Log(platform.Warn, "socket", "tcp connect failed: "+err.Error())
		return sockerr.Newf(sockerr.CodeSystemCall, "connect: %v", err).WithCause(err).WithHandle(uint64(h))
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		if serr := tc.SetNoDelay(!base.flags.has(FlagTCPDelay)); serr != nil {
			m.logger.Log(platform.Warn, "socket", "setnodelay failed: "+serr.Error())
		}
	}

	base.conn = conn
	base.state = Connected
	base.closed = false
	remote, _ := sockaddr.FromNetIP(conn.RemoteAddr().(*net.TCPAddr).IP, uint16(conn.RemoteAddr().(*net.TCPAddr).Port))
	rec.addressRemote = &remote
	if local, lerr := sockaddr.FromNetIP(conn.LocalAddr().(*net.TCPAddr).IP, uint16(conn.LocalAddr().(*net.TCPAddr).Port)); lerr == nil {
		rec.addressLocal = &local
	}
	m.registerNotify(h, conn)
	m.postEvent(eventbus.Connect, h)
	return nil
}

func (m *Manager) connectUDP(h Handle, rec *socketRecord, base *baseRecord, addr sockaddr.Address) error {
	base.mu.Lock()
	defer base.mu.Unlock()
	if base.udpConn == nil {
		conn, err := net.ListenUDP(udpNetwork(addr), nil)
		if err != nil {
			return sockerr.Newf(sockerr.CodeSystemCall, "udp open: %v", err).WithCause(err).WithHandle(uint64(h))
		}
		base.udpConn = conn
	}
	base.udpPeer = addr.ToUDPAddr()
	base.hasUDPPeer = true
	base.state = Connected
	base.closed = false
	remote := addr.Clone()
	rec.addressRemote = &remote
	return nil
}

// Listen promotes a bound TCP socket to the Listening state. Requires a
// prior Bind: a valid fd with address_local already set.
func (m *Manager) Listen(h Handle) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	if rec.protocol != protoTCP {
		return errNotImplemented
	}
	base := m.resolveBase(rec)
	if base == nil || base.listener == nil || base.state != NotConnected {
		return sockerr.ErrInvalidState.WithHandle(uint64(h))
	}

	base.mu.Lock()
	defer base.mu.Unlock()
	if m.maxSockets > 0 {
		base.listener = netutil.LimitListener(base.listener, m.maxSockets)
	}
	base.state = Listening
	return nil
}

// Accept waits for a connection on a listening socket. On a blocking socket
// timeout <= 0 blocks indefinitely; timeout > 0 bounds the wait and returns
// Timeout (zero Handle) if it elapses. On a non-blocking socket a wait that
// expires (immediately when timeout <= 0) returns WouldBlock. On success a
// new, Connected TCP socket is created for the accepted peer.
func (m *Manager) Accept(h Handle, timeout time.Duration) (Handle, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return socktab.Zero, err
	}
	if rec.protocol != protoTCP {
		return socktab.Zero, errNotImplemented
	}
	base := m.resolveBase(rec)
	if base == nil || base.state != Listening {
		m.logger.Log(platform.Warn, "socket", "accept on non-listening socket")
		return socktab.Zero, sockerr.ErrInvalidState.WithHandle(uint64(h))
	}

	base.mu.Lock()
	blocking := base.flags.has(FlagBlocking)
	base.mu.Unlock()

	ln := base.listener
	if base.rawListener != nil && (timeout > 0 || !blocking) {
		_ = base.rawListener.SetDeadline(deadlineFor(blocking, timeout))
		defer base.rawListener.SetDeadline(time.Time{})
	}

	conn, err := ln.Accept()
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			if !blocking {
				return socktab.Zero, sockerr.ErrWouldBlock.WithHandle(uint64(h))
			}
			return socktab.Zero, sockerr.ErrTimeout.WithHandle(uint64(h))
		}
		m.logger.Log(platform.Warn, "socket", "accept failed: "+err.Error())
		return socktab.Zero, sockerr.Newf(sockerr.CodeSystemCall, "accept: %v", err).WithCause(err).WithHandle(uint64(h))
	}

	childHandle, cerr := m.NewTCPSocket()
	if cerr != nil {
		_ = conn.Close()
		return socktab.Zero, cerr
	}
	childRec, _ := m.resolve(childHandle)
	childBase, berr := m.ensureBase(childRec)
	if berr != nil {
		_ = conn.Close()
		m.sockets.Free(childHandle)
		return socktab.Zero, berr
	}

	childBase.mu.Lock()
	childBase.conn = conn
	childBase.state = Connected
	childBase.mu.Unlock()

	remoteTCP := conn.RemoteAddr().(*net.TCPAddr)
	remote, _ := sockaddr.FromNetIP(remoteTCP.IP, uint16(remoteTCP.Port))
	childRec.addressRemote = &remote
	if localTCP, ok := conn.LocalAddr().(*net.TCPAddr); ok {
		if local, lerr := sockaddr.FromNetIP(localTCP.IP, uint16(localTCP.Port)); lerr == nil {
			childRec.addressLocal = &local
		}
	}

	m.registerNotify(childHandle, conn)
	m.postEvent(eventbus.Accept, childHandle)
	return childHandle, nil
}

// Delay reports the TcpDelay flag (true ⇒ Nagle enabled, NODELAY off).
func (m *Manager) Delay(h Handle) (bool, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return false, err
	}
	base := m.resolveBase(rec)
	if base == nil {
		return false, nil
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	return base.flags.has(FlagTCPDelay), nil
}

// SetDelay maps onto TCP_NODELAY with an inverted sense: delay == true
// enables Nagle's algorithm (NODELAY = 0).
func (m *Manager) SetDelay(h Handle, delay bool) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	if rec.protocol != protoTCP {
		return errNotImplemented
	}
	base, err := m.ensureBase(rec)
	if err != nil {
		return err
	}

	base.mu.Lock()
	defer base.mu.Unlock()
	if delay {
		base.flags = base.flags.set(FlagTCPDelay)
	} else {
		base.flags = base.flags.clear(FlagTCPDelay)
	}
	if tc, ok := base.conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(!delay); err != nil {
			m.logger.Log(platform.Warn, "socket", "setnodelay failed: "+err.Error())
			return sockerr.Newf(sockerr.CodeSystemCall, "set_delay: %v", err).WithCause(err).WithHandle(uint64(h))
		}
	}
	return nil
}
