package socket

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/harish-agr/network-lib/internal/eventbus"
	"github.com/harish-agr/network-lib/internal/platform"
	"github.com/harish-agr/network-lib/internal/poller"
	"github.com/harish-agr/network-lib/internal/sockaddr"
	"github.com/harish-agr/network-lib/internal/sockerr"
	"github.com/harish-agr/network-lib/internal/socktab"
)

// Handle identifies a socket record. It is the public, protocol-agnostic
// token every operation in this package and the root API takes.
type Handle = socktab.Handle

// Manager owns the two-level handle-indirected table (socket records over
// base slots), the process-wide event bus, and the collaborators every
// socket operation depends on. One Manager corresponds to one
// module_initialize/module_finalize lifecycle.
type Manager struct {
	sockets *socktab.Table[*socketRecord]
	bases   *socktab.Table[*baseRecord]

	events *platform.FoundationHandle
	bus    platform.FoundationStream

	poll   poller.Poller
	logger platform.Logger
	alloc  platform.Allocator

	streamCapacity int
	maxSockets     int
}

// New builds a Manager from cfg; it is the module_initialize operation.
// cfg.MaxSockets bounds the socket table (0 = unbounded).
func New(cfg platform.Config) *Manager {
	cfg = cfg.WithDefaults()

	m := &Manager{
		sockets:        socktab.New[*socketRecord](cfg.MaxSockets),
		bases:          socktab.New[*baseRecord](cfg.MaxSockets),
		bus:            platform.NewBusFoundation(cfg.Logger),
		logger:         cfg.Logger,
		alloc:          cfg.Allocator,
		streamCapacity: cfg.EventStreamSize,
		maxSockets:     cfg.MaxSockets,
	}

	switch cfg.Poller {
	case platform.PollerPortable:
		m.poll = poller.New(true)
	default:
		m.poll = poller.New(false)
	}
	_ = m.poll.Start(context.Background())

	streamHandle := m.bus.Allocate(cfg.EventStreamSize)
	m.events = &streamHandle
	return m
}

// Finalize stops the poller and drains/deallocates the event bus, the
// counterpart to module_finalize.
func (m *Manager) Finalize() {
	_ = m.poll.Stop()
	if m.events != nil {
		m.bus.Deallocate(*m.events)
	}
}

// Events returns the event stream handle consumers drain with EventNext.
func (m *Manager) Events() platform.FoundationHandle { return *m.events }

// EventNext blocks for the next posted lifecycle event, per event_socket /
// event_stream's drain side.
func (m *Manager) EventNext(ctx context.Context) (eventbus.Event, bool) {
	return m.bus.Process(ctx, *m.events)
}

func (m *Manager) postEvent(id eventbus.ID, h Handle) {
	m.bus.Post(*m.events, id, uint64(h))
}

// newSocket allocates a socket record of the given protocol. Mirrors
// tcp_socket_create / udp_socket_create; the base slot is allocated lazily
// on first open (bind/connect/listen), not here.
func (m *Manager) newSocket(protocol protocolKind) (Handle, error) {
	rec := &socketRecord{protocol: protocol}
	h, ok := m.sockets.Allocate(rec)
	if !ok {
		return socktab.Zero, sockerr.ErrOutOfSlots
	}
	return h, nil
}

// NewTCPSocket creates an unopened TCP socket record.
func (m *Manager) NewTCPSocket() (Handle, error) { return m.newSocket(protoTCP) }

// NewUDPSocket creates an unopened UDP socket record.
func (m *Manager) NewUDPSocket() (Handle, error) { return m.newSocket(protoUDP) }

// IsSocket reports whether h currently resolves to a live socket record.
func (m *Manager) IsSocket(h Handle) bool { return m.sockets.IsValid(h) }

func (m *Manager) resolve(h Handle) (*socketRecord, error) {
	rec, ok := m.sockets.Get(h)
	if !ok {
		return nil, sockerr.ErrInvalidHandle.WithHandle(uint64(h))
	}
	return rec, nil
}

func (m *Manager) resolveBase(rec *socketRecord) *baseRecord {
	if !rec.hasBase {
		return nil
	}
	b, ok := m.bases.Get(socktab.Handle(rec.baseHandle))
	if !ok {
		return nil
	}
	return b
}

// ensureBase allocates a base slot for rec if it does not already have one.
func (m *Manager) ensureBase(rec *socketRecord) (*baseRecord, error) {
	if b := m.resolveBase(rec); b != nil {
		return b, nil
	}
	base := newBaseRecord(rec.protocol, m.alloc)
	bh, ok := m.bases.Allocate(base)
	if !ok {
		return nil, sockerr.ErrOutOfSlots
	}
	rec.hasBase = true
	rec.baseHandle = uint64(bh)
	return base, nil
}

// Free destroys a socket record, closing its base slot first if open.
// free_base returns the slot to its table's free list.
func (m *Manager) Free(h Handle) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	_ = m.closeHandle(h, rec)
	if rec.hasBase {
		m.bases.Free(socktab.Handle(rec.baseHandle))
		rec.hasBase = false
	}
	m.sockets.Free(h)
	return nil
}

// Bind requires a base slot (opening one lazily via the address family) and
// binds the underlying OS socket to addr.
func (m *Manager) Bind(h Handle, addr sockaddr.Address) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	base, err := m.ensureBase(rec)
	if err != nil {
		return err
	}

	base.mu.Lock()
	defer base.mu.Unlock()

	switch rec.protocol {
	case protoUDP:
		conn, err := net.ListenUDP(udpNetwork(addr), addr.ToUDPAddr())
		if err != nil {
			m.logger.Log(platform.Error, "socket", "udp bind failed: "+err.Error())
			return sockerr.Newf(sockerr.CodeSystemCall, "bind: %v", err).WithCause(err).WithHandle(uint64(h))
		}
		base.udpConn = conn
	default:
		lc := net.ListenConfig{Control: controlReusable}
		ln, err := lc.Listen(context.Background(), tcpNetwork(addr), addr.ToTCPAddr().String())
		if err != nil {
			m.logger.Log(platform.Error, "socket", "tcp bind failed: "+err.Error())
			return sockerr.Newf(sockerr.CodeSystemCall, "bind: %v", err).WithCause(err).WithHandle(uint64(h))
		}
		// Bind-then-maybe-listen: stash the listener; Listen() promotes it.
		base.listener = ln
		if tln, ok := ln.(*net.TCPListener); ok {
			base.rawListener = tln
		}
	}

	local := addr.Clone()
	rec.addressLocal = &local
	return nil
}

// Close performs a graceful shutdown and releases the OS descriptor; the
// base slot itself is retained (and can be reopened) until Free is called.
func (m *Manager) Close(h Handle) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	return m.closeHandle(h, rec)
}

func (m *Manager) closeHandle(h Handle, rec *socketRecord) error {
	base := m.resolveBase(rec)
	if base == nil {
		return nil
	}
	base.mu.Lock()
	already := base.closed
	if !already {
		base.closed = true
		if base.conn != nil {
			_ = m.poll.Deregister(base.conn)
			_ = base.conn.Close()
			base.conn = nil
		}
		if base.listener != nil {
			_ = base.listener.Close()
			base.listener = nil
		}
		if base.udpConn != nil {
			_ = m.poll.Deregister(base.udpConn)
			_ = base.udpConn.Close()
			base.udpConn = nil
		}
		base.releaseBuffers()
		base.state = Disconnected
	}
	base.mu.Unlock()
	if !already {
		m.postEvent(eventbus.Hangup, h)
	}
	return nil
}

// Blocking reports the socket's current blocking-mode flag.
func (m *Manager) Blocking(h Handle) (bool, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return false, err
	}
	base := m.resolveBase(rec)
	if base == nil {
		return true, nil
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	return base.flags.has(FlagBlocking), nil
}

// SetBlocking updates the Blocking flag. The flag is effective on the next
// stream read/write, RecvFrom and Accept through the deadline-based
// emulation those paths use; Connect does not consult it;
// net.Conn has no direct non-blocking toggle, so this module emulates
// WouldBlock via a zero/short deadline instead of an OS-level fcntl flip.
func (m *Manager) SetBlocking(h Handle, blocking bool) error {
	rec, err := m.resolve(h)
	if err != nil {
		return err
	}
	base, err := m.ensureBase(rec)
	if err != nil {
		return err
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	if blocking {
		base.flags = base.flags.set(FlagBlocking)
	} else {
		base.flags = base.flags.clear(FlagBlocking)
	}
	return nil
}

// LocalAddress returns the socket's bound/local address, if any.
func (m *Manager) LocalAddress(h Handle) (sockaddr.Address, bool, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return sockaddr.Address{}, false, err
	}
	if rec.addressLocal == nil {
		return sockaddr.Address{}, false, nil
	}
	return *rec.addressLocal, true, nil
}

// RemoteAddress returns the socket's connected peer address, if any.
func (m *Manager) RemoteAddress(h Handle) (sockaddr.Address, bool, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return sockaddr.Address{}, false, err
	}
	if rec.addressRemote == nil {
		return sockaddr.Address{}, false, nil
	}
	return *rec.addressRemote, true, nil
}

// State returns the socket's lifecycle state. Sockets with no base slot yet
// are NotConnected, matching a freshly created, unopened record.
func (m *Manager) State(h Handle) (State, error) {
	rec, err := m.resolve(h)
	if err != nil {
		return NotConnected, err
	}
	base := m.resolveBase(rec)
	if base == nil {
		return NotConnected, nil
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	return base.state, nil
}

func tcpNetwork(addr sockaddr.Address) string {
	if addr.Family() == sockaddr.FamilyIPv6 {
		return "tcp6"
	}
	return "tcp4"
}

func udpNetwork(addr sockaddr.Address) string {
	if addr.Family() == sockaddr.FamilyIPv6 {
		return "udp6"
	}
	return "udp4"
}

// deadlineFor converts the blocking flag and an optional timeout into a
// concrete I/O deadline: zero time means block indefinitely (Go's
// convention for "no deadline").
func deadlineFor(blocking bool, timeout time.Duration) time.Time {
	if blocking && timeout <= 0 {
		return time.Time{}
	}
	if timeout <= 0 {
		// Non-blocking with no explicit timeout: expire immediately so the
		// first I/O attempt either completes or reports WouldBlock.
		return time.Now()
	}
	return time.Now().Add(timeout)
}

var errNotImplemented = errors.New("socket: operation not implemented for this protocol")

// registerNotify arranges for background Data/Hangup events to be posted on
// h as conn becomes readable or encounters an error, independent of any
// synchronous read the caller later performs through the stream adapter.
func (m *Manager) registerNotify(h Handle, conn net.Conn) {
	_ = m.poll.Register(conn, []poller.Interest{poller.Readable}, func(ev poller.Event) {
		if ev.Err != nil {
			m.postEvent(eventbus.Hangup, h)
			return
		}
		m.postEvent(eventbus.Data, h)
	})
}
