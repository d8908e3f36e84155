package socket

import "github.com/harish-agr/network-lib/internal/sockaddr"

// socketRecord is the user-facing half of a socket: the protocol tag, the
// indirection to its base slot, and the owned addresses. It is deliberately
// thin; everything that needs a hot, cache-friendly layout lives in
// baseRecord instead.
type socketRecord struct {
	protocol protocolKind

	hasBase    bool
	baseHandle uint64 // raw socktab.Handle value for the base table

	addressLocal  *sockaddr.Address
	addressRemote *sockaddr.Address
}
