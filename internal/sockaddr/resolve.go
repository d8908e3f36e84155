package sockaddr

import (
	"context"
	"net"
	"net/netip"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/harish-agr/network-lib/internal/sockerr"
)

// resolveGroup collapses concurrent resolutions of the same (hostname,
// service) pair into a single underlying lookup, the way a burst of
// connection attempts to the same name should not each pay for their own
// DNS round trip.
var resolveGroup singleflight.Group

// Resolve looks up hostname (and, if service names a port, resolves the
// service name) and returns every address the resolver reports. Fails with
// ResolveFailure when the resolver returns no results.
func Resolve(ctx context.Context, hostname, service string) ([]Address, error) {
	port, err := resolvePort(service)
	if err != nil {
		return nil, err
	}

	v, err, _ := resolveGroup.Do(hostname, func() (any, error) {
		ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", hostname)
		if err != nil {
			return nil, sockerr.Newf(sockerr.CodeResolveFailure, "resolve %q: %v", hostname, err).WithCause(err)
		}
		if len(ips) == 0 {
			return nil, sockerr.ErrResolveFailure
		}
		return ips, nil
	})
	if err != nil {
		return nil, err
	}

	ips := v.([]netip.Addr)
	out := make([]Address, len(ips))
	for i, ip := range ips {
		out[i] = FromNetipAddr(ip, port)
	}
	return out, nil
}

// resolvePort resolves service to a numeric port, accepting either a literal
// port number or a well-known service name (e.g. "https").
func resolvePort(service string) (uint16, error) {
	if service == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(service, 10, 16); err == nil {
		return uint16(n), nil
	}
	port, err := net.LookupPort("tcp", service)
	if err != nil {
		return 0, sockerr.Newf(sockerr.CodeResolveFailure, "resolve service %q: %v", service, err).WithCause(err)
	}
	return uint16(port), nil
}
