package socket

import (
	"net"
	"sync"

	"github.com/harish-agr/network-lib/internal/eventbus"
	"github.com/harish-agr/network-lib/internal/platform"
)

// baseRecord is the hot-path slot backing a socket: one OS descriptor
// (represented here by whichever net package handle is live), lifecycle
// state, option flags, and the two buffered-I/O staging areas the stream
// adapter reads and writes through.
type baseRecord struct {
	mu sync.Mutex

	protocol protocolKind
	state    State
	flags    Flags

	// conn is the connected byte-stream endpoint (TCP client/accepted
	// socket). udpConn is always the bound UDP endpoint, used for both
	// sendto/recvfrom and UDP-as-stream; UDP never uses conn.
	conn     net.Conn
	listener net.Listener
	// rawListener is the unwrapped *net.TCPListener backing listener (which
	// may be a netutil.LimitListener wrapper once Listen has run); kept
	// separately so Accept can still apply a deadline-based timeout.
	rawListener *net.TCPListener
	udpConn     *net.UDPConn

	readBuf    []byte
	readOffset int
	readLength int

	writeBuf    []byte
	writeLength int

	lastEvent    eventbus.ID
	hasLastEvent bool

	// udpPeer is the remembered remote address for a UDP socket that has
	// been "connected" for stream use (or has received a datagram through a
	// stream read): no wire handshake, just bookkeeping so the stream
	// adapter's flush knows where to send. SendTo and RecvFrom neither use
	// nor update it.
	udpPeer    net.Addr
	hasUDPPeer bool

	alloc  platform.Allocator
	closed bool
}

func newBaseRecord(protocol protocolKind, alloc platform.Allocator) *baseRecord {
	return &baseRecord{
		protocol: protocol,
		state:    NotConnected,
		flags:    FlagBlocking,
		alloc:    alloc,
	}
}

func (b *baseRecord) ensureReadBuf() {
	if b.readBuf == nil {
		b.readBuf = b.alloc.Alloc(DefaultBufferSize, false)
		b.readBuf = b.readBuf[:cap(b.readBuf)]
	}
}

func (b *baseRecord) ensureWriteBuf() {
	if b.writeBuf == nil {
		b.writeBuf = b.alloc.Alloc(DefaultBufferSize, false)
		b.writeBuf = b.writeBuf[:cap(b.writeBuf)]
	}
}

// releaseBuffers returns both staging buffers to the allocator. Called once,
// from closeLocked.
func (b *baseRecord) releaseBuffers() {
	if b.readBuf != nil {
		b.alloc.Free(b.readBuf)
		b.readBuf = nil
	}
	if b.writeBuf != nil {
		b.alloc.Free(b.writeBuf)
		b.writeBuf = nil
	}
}

// activeConn returns whichever connection this base currently reads and
// writes through, or nil if none is open.
func (b *baseRecord) activeConn() net.Conn {
	if b.protocol == protoUDP {
		if b.udpConn != nil {
			return b.udpConn
		}
		return nil
	}
	return b.conn
}
