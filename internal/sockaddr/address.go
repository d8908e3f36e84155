// Package sockaddr implements a family-agnostic socket address value:
// parsing, formatting, equality, cloning, resolution, and local interface
// enumeration.
package sockaddr

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/harish-agr/network-lib/internal/sockerr"
)

// Family distinguishes IPv4 from IPv6 addresses.
type Family int

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Address is a value-like, family-tagged endpoint. The raw bytes are sized
// per family: 4 bytes for IPv4, 16 for IPv6. Zone is only meaningful for
// link-local IPv6 addresses (e.g. fe80::1%eth0).
type Address struct {
	family Family
	bytes  [16]byte
	port   uint16
	zone   string
}

// Family returns the address's family.
func (a Address) Family() Family { return a.family }

// Port returns the address's port.
func (a Address) Port() uint16 { return a.port }

// SetPort returns a copy of a with its port replaced.
func (a Address) SetPort(port uint16) Address {
	a.port = port
	return a
}

// Clone returns an independent copy of a. Because Address holds no pointers,
// a plain value copy already satisfies "mutating the clone does not affect
// the original", but Clone exists as a named operation for callers that
// think in terms of owned copies rather than relying on that implicitly.
func (a Address) Clone() Address { return a }

// Equal compares family, raw bytes (including the family-sized prefix), and
// port. Zone is not significant to equality, mirroring net.IP comparison
// semantics where scope is routing information rather than identity.
func (a Address) Equal(other Address) bool {
	if a.family != other.family || a.port != other.port {
		return false
	}
	n := addressSize(a.family)
	return bytes.Equal(a.bytes[:n], other.bytes[:n])
}

// IsZero reports whether a is the unset zero value.
func (a Address) IsZero() bool {
	return a.family == FamilyIPv4 && a.port == 0 && a.bytes == [16]byte{} && a.zone == ""
}

func addressSize(f Family) int {
	if f == FamilyIPv6 {
		return 16
	}
	return 4
}

// FromNetIP builds an Address from a standard library IP and port.
func FromNetIP(ip net.IP, port uint16) (Address, error) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return Address{}, sockerr.New(sockerr.CodeInvalidAddress, "invalid IP bytes")
	}
	return FromNetipAddr(addr, port), nil
}

// FromNetipAddr builds an Address from netip.Addr and a port.
func FromNetipAddr(addr netip.Addr, port uint16) Address {
	a := Address{port: port, zone: addr.Zone()}
	if addr.Is4() || addr.Is4In6() {
		a.family = FamilyIPv4
		v4 := addr.As4()
		copy(a.bytes[:4], v4[:])
		return a
	}
	a.family = FamilyIPv6
	v6 := addr.As16()
	copy(a.bytes[:16], v6[:])
	return a
}

// ToNetipAddr converts a back to netip.Addr.
func (a Address) ToNetipAddr() netip.Addr {
	n := addressSize(a.family)
	var addr netip.Addr
	if n == 4 {
		var b [4]byte
		copy(b[:], a.bytes[:4])
		addr = netip.AddrFrom4(b)
	} else {
		var b [16]byte
		copy(b[:], a.bytes[:16])
		addr = netip.AddrFrom16(b)
	}
	if a.zone != "" {
		addr = addr.WithZone(a.zone)
	}
	return addr
}

// ToUDPAddr adapts a to the standard library's *net.UDPAddr.
func (a Address) ToUDPAddr() *net.UDPAddr {
	ip := a.ToNetipAddr()
	return &net.UDPAddr{IP: net.IP(ip.AsSlice()), Port: int(a.port), Zone: a.zone}
}

// ToTCPAddr adapts a to the standard library's *net.TCPAddr.
func (a Address) ToTCPAddr() *net.TCPAddr {
	ip := a.ToNetipAddr()
	return &net.TCPAddr{IP: net.IP(ip.AsSlice()), Port: int(a.port), Zone: a.zone}
}

// ToString renders a as "host:port" (numeric=true) or using reverse DNS
// (numeric=false, falling back to numeric on lookup failure).
func (a Address) ToString(numeric bool) string {
	host := a.ToNetipAddr().String()
	if !numeric {
		if names, err := net.LookupAddr(a.ToNetipAddr().String()); err == nil && len(names) > 0 {
			host = names[0]
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(int(a.port)))
}

// ParseNumeric parses "host:port" or "[host%zone]:port" where host is a
// numeric IPv4/IPv6 literal. Satisfies the round-trip law:
// Parse(ToString(true, a)) == a.
func ParseNumeric(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, sockerr.Newf(sockerr.CodeInvalidAddress, "split host:port: %v", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, sockerr.Newf(sockerr.CodeInvalidAddress, "invalid port %q", portStr)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return Address{}, sockerr.Newf(sockerr.CodeInvalidAddress, "invalid address %q: %v", host, err)
	}
	return FromNetipAddr(addr, uint16(port)), nil
}

// String implements fmt.Stringer using numeric formatting.
func (a Address) String() string { return a.ToString(true) }

var _ fmt.Stringer = Address{}
