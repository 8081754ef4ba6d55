package netutil

import (
	"net"
	"strings"
)

// IPv4Addrs returns the host's non-loopback IPv4 addresses, in interface
// order.
func IPv4Addrs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		out = append(out, filterIPv4(addrs)...)
	}
	return out, nil
}

// filterIPv4 keeps the IPv4, non-loopback entries of addrs.
func filterIPv4(addrs []net.Addr) []string {
	var out []string
	for _, a := range addrs {
		ip := addrIP(a)
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			out = append(out, v4.String())
		}
	}
	return out
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}

// cgnat is 100.64.0.0/10, used by carrier NATs, Tailscale and WARP.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0).To4(), Mask: net.CIDRMask(10, 32)}

// vpnHints are interface name fragments of tunnel devices.
var vpnHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// ShouldForceRelay reports whether this host is likely behind a VPN or
// CGNAT, where direct peer-to-peer paths rarely work and a TURN relay is
// the better default.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ip := addrIP(a); ip != nil && cgnat.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, h := range vpnHints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}
