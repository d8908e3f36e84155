// Package netsock is the public surface of this module: portable,
// handle-addressed TCP/UDP sockets presented as buffered streams, with
// address resolution and a process-wide lifecycle event bus. It is a thin,
// typed facade over internal/socket; every exported function here
// corresponds to one named socket operation (tcp_socket_create, socket_bind,
// tcp_socket_accept, and so on).
package netsock

import (
	"context"
	"time"

	"github.com/harish-agr/network-lib/internal/eventbus"
	"github.com/harish-agr/network-lib/internal/platform"
	"github.com/harish-agr/network-lib/internal/sockaddr"
	"github.com/harish-agr/network-lib/internal/socket"
)

// Handle is an opaque socket identifier, stable for the socket's lifetime
// and invalidated on Free.
type Handle = socket.Handle

// Address is a family-agnostic endpoint value.
type Address = sockaddr.Address

// Stream is the buffered read/write/flush view over a socket handle.
type Stream = socket.Stream

// State is a socket's lifecycle state.
type State = socket.State

const (
	NotConnected = socket.NotConnected
	Connecting   = socket.Connecting
	Connected    = socket.Connected
	Listening    = socket.Listening
	Disconnected = socket.Disconnected
)

// EventID identifies the kind of lifecycle transition an Event reports.
type EventID = eventbus.ID

const (
	EventConnect = eventbus.Connect
	EventAccept  = eventbus.Accept
	EventData    = eventbus.Data
	EventHangup  = eventbus.Hangup
)

// Event is a single lifecycle record drained from the event stream.
type Event = eventbus.Event

// EventStreamHandle identifies one Module's event source.
type EventStreamHandle = platform.FoundationHandle

// Config configures a Module. The zero value is valid and selects every
// default collaborator (pooled allocator, async stdlib-backed logger,
// OS-optimized poller).
type Config = platform.Config

// Logger, Allocator are re-exported collaborator contracts so a host
// application can supply its own without importing internal packages.
type (
	Logger    = platform.Logger
	Allocator = platform.Allocator
)

// NewStdLogger and NopLogger construct the two bundled Logger
// implementations.
func NewStdLogger(queueDepth int) Logger { return platform.NewStdLogger(queueDepth) }
func NopLogger() Logger                  { return platform.NopLogger() }

// NewPooledAllocator constructs the bundled Allocator implementation.
func NewPooledAllocator() Allocator { return platform.NewPooledAllocator() }

// Module is the module_initialize/module_finalize lifecycle: one Module
// owns one socket table, one event bus, and one poller. Safe for concurrent
// use by multiple goroutines on distinct handles.
type Module struct {
	m *socket.Manager
}

// Initialize is module_initialize: builds a Module from cfg.
func Initialize(cfg Config) *Module {
	return &Module{m: socket.New(cfg)}
}

// Finalize is module_finalize: stops the poller and drains/deallocates the
// event bus. The Module must not be used afterward.
func (mod *Module) Finalize() { mod.m.Finalize() }

// NewTCPSocket is tcp_socket_create.
func (mod *Module) NewTCPSocket() (Handle, error) { return mod.m.NewTCPSocket() }

// NewUDPSocket is udp_socket_create.
func (mod *Module) NewUDPSocket() (Handle, error) { return mod.m.NewUDPSocket() }

// Free is socket_free.
func (mod *Module) Free(h Handle) error { return mod.m.Free(h) }

// Bind is socket_bind.
func (mod *Module) Bind(h Handle, addr Address) error { return mod.m.Bind(h, addr) }

// Connect is socket_connect. timeout <= 0 blocks until the OS completes or
// fails the connection.
func (mod *Module) Connect(h Handle, addr Address, timeout time.Duration) error {
	return mod.m.Connect(h, addr, timeout)
}

// Close is socket_close: idempotent graceful shutdown.
func (mod *Module) Close(h Handle) error { return mod.m.Close(h) }

// Blocking is socket_blocking.
func (mod *Module) Blocking(h Handle) (bool, error) { return mod.m.Blocking(h) }

// SetBlocking is socket_set_blocking.
func (mod *Module) SetBlocking(h Handle, blocking bool) error {
	return mod.m.SetBlocking(h, blocking)
}

// LocalAddress is socket_address_local.
func (mod *Module) LocalAddress(h Handle) (Address, bool, error) { return mod.m.LocalAddress(h) }

// RemoteAddress is socket_address_remote.
func (mod *Module) RemoteAddress(h Handle) (Address, bool, error) { return mod.m.RemoteAddress(h) }

// SocketState is socket_state.
func (mod *Module) SocketState(h Handle) (State, error) { return mod.m.State(h) }

// IsSocket is socket_is_socket.
func (mod *Module) IsSocket(h Handle) bool { return mod.m.IsSocket(h) }

// Stream is socket_stream: the buffered read/write/flush view over h.
func (mod *Module) Stream(h Handle) (*Stream, error) { return mod.m.Stream(h) }

// Listen is tcp_socket_listen.
func (mod *Module) Listen(h Handle) error { return mod.m.Listen(h) }

// Accept is tcp_socket_accept.
func (mod *Module) Accept(h Handle, timeout time.Duration) (Handle, error) {
	return mod.m.Accept(h, timeout)
}

// Delay is tcp_socket_delay.
func (mod *Module) Delay(h Handle) (bool, error) { return mod.m.Delay(h) }

// SetDelay is tcp_socket_set_delay.
func (mod *Module) SetDelay(h Handle, delay bool) error { return mod.m.SetDelay(h, delay) }

// SendTo is udp_socket_sendto.
func (mod *Module) SendTo(h Handle, datagram []byte, target Address) (int, error) {
	return mod.m.SendTo(h, datagram, target)
}

// RecvFrom is udp_socket_recvfrom.
func (mod *Module) RecvFrom(h Handle, timeout time.Duration) ([]byte, Address, error) {
	return mod.m.RecvFrom(h, timeout)
}

// EventStream is event_stream: identifies this Module's event source.
func (mod *Module) EventStream() EventStreamHandle { return mod.m.Events() }

// NextEvent is event_socket's drain side: blocks for the next posted
// lifecycle event, a context-cancellable equivalent of draining
// event_stream() in a loop.
func (mod *Module) NextEvent(ctx context.Context) (Event, bool) { return mod.m.EventNext(ctx) }

// Resolve is the address layer's resolve(hostname, service).
func Resolve(ctx context.Context, hostname, service string) ([]Address, error) {
	return sockaddr.Resolve(ctx, hostname, service)
}

// LocalInterfaces returns an address for every configured local interface.
func LocalInterfaces() ([]Address, error) { return sockaddr.LocalInterfaces() }

// ParseAddress parses a numeric "host:port" (or bracketed IPv6 literal)
// into an Address.
func ParseAddress(s string) (Address, error) { return sockaddr.ParseNumeric(s) }
