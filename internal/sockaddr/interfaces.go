package sockaddr

import "net"

// LocalInterfaces returns an address for every unicast address configured on
// every local network interface, grounded on the way local interface tables
// are built from net.Interfaces()/Addrs() elsewhere in the corpus (e.g. the
// iphelper-style table builders that enumerate host interfaces for routing
// decisions). Interfaces that fail to report addresses (permissions, unusual
// drivers) are skipped rather than failing the whole enumeration.
func LocalInterfaces() ([]Address, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []Address
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			addr, convErr := FromNetIP(ipNet.IP, 0)
			if convErr != nil {
				continue
			}
			out = append(out, addr)
		}
	}
	return out, nil
}
