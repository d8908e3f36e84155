package socket

import (
	"net"
	"time"

	"github.com/harish-agr/network-lib/internal/platform"
	"github.com/harish-agr/network-lib/internal/sockaddr"
	"github.com/harish-agr/network-lib/internal/sockerr"
)

// SendTo writes one datagram atomically to target. A datagram can be sent
// on any bound UDP socket regardless of whether the socket has also been
// Connect-ed for stream use.
func (m *Manager) SendTo(h Handle, datagram []byte, target sockaddr.Address) (int, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	if rec.protocol != protoUDP {
		return 0, errNotImplemented
	}
	if len(datagram) > DefaultUDPDatagramSize {
		return 0, sockerr.ErrMessageTooLarge.WithHandle(uint64(h))
	}
	base, err := m.ensureBase(rec)
	if err != nil {
		return 0, err
	}
	if base.udpConn == nil {
		bound, berr := net.ListenUDP(udpNetwork(target), nil)
		if berr != nil {
			return 0, sockerr.Newf(sockerr.CodeSystemCall, "udp open: %v", berr).WithCause(berr).WithHandle(uint64(h))
		}
		base.mu.Lock()
		base.udpConn = bound
		base.mu.Unlock()
	}

	if len(datagram) == 0 {
		return 0, nil
	}

	n, err := base.udpConn.WriteToUDP(datagram, target.ToUDPAddr())
	if err != nil {
		m.logger.Log(platform.Debug, "socket", "udp sendto failed: "+err.Error())
		return 0, sockerr.Newf(sockerr.CodeSystemCall, "sendto: %v", err).WithCause(err).WithHandle(uint64(h))
	}
	return n, nil
}

// RecvFrom reads exactly one datagram, returning its bytes and sender. The
// returned slice is a fresh copy and remains valid independent of later
// calls (unlike the stream adapter's single borrowed buffer).
func (m *Manager) RecvFrom(h Handle, timeout time.Duration) ([]byte, sockaddr.Address, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return nil, sockaddr.Address{}, err
	}
	if rec.protocol != protoUDP {
		return nil, sockaddr.Address{}, errNotImplemented
	}
	base, err := m.ensureBase(rec)
	if err != nil {
		return nil, sockaddr.Address{}, err
	}
	if base.udpConn == nil {
		return nil, sockaddr.Address{}, sockerr.ErrInvalidState.WithHandle(uint64(h))
	}

	blocking := base.flags.has(FlagBlocking)
	deadline := deadlineFor(blocking, timeout)
	_ = base.udpConn.SetReadDeadline(deadline)

	buf := m.alloc.Alloc(DefaultUDPDatagramSize, false)
	defer m.alloc.Free(buf)

	n, peerAddr, err := base.udpConn.ReadFromUDP(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			if !blocking {
				return nil, sockaddr.Address{}, sockerr.ErrWouldBlock.WithHandle(uint64(h))
			}
			return nil, sockaddr.Address{}, sockerr.ErrTimeout.WithHandle(uint64(h))
		}
		m.logger.Log(platform.Debug, "socket", "udp recvfrom failed: "+err.Error())
		return nil, sockaddr.Address{}, sockerr.Newf(sockerr.CodeSystemCall, "recvfrom: %v", err).WithCause(err).WithHandle(uint64(h))
	}

	peer, perr := sockaddr.FromNetIP(peerAddr.IP, uint16(peerAddr.Port))
	if perr != nil {
		return nil, sockaddr.Address{}, perr
	}

	out := make([]byte, n)
	copy(out, buf[:n])
	return out, peer, nil
}
