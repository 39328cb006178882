// Package hostenv reports what the host environment offers for loopback
// testing: the set of usable loopback host forms and whether IPv6 is
// available at all.
package hostenv

import (
	"net"
	"sync"
)

// Loopback host forms used to parameterize tests.
const (
	LocalhostName = "localhost"
	IPv4Loopback  = "127.0.0.1"
	IPv6Loopback  = "::1"
)

// hasIPv6 binds an ephemeral port on the IPv6 loopback once per process.
// Kernel or distro configuration can leave a binary compiled with IPv6
// support on a host without it, so an actual bind is the only reliable
// check.
var hasIPv6 = sync.OnceValue(func() bool {
	ln, err := net.Listen("tcp6", net.JoinHostPort(IPv6Loopback, "0"))
	if err != nil {
		return false
	}
	ln.Close()
	return true
})

// HasIPv6 reports whether the host can bind the IPv6 loopback address.
// The probe runs once; the result is cached for the process lifetime.
func HasIPv6() bool {
	return hasIPv6()
}

// LoopbackHosts returns the loopback host forms to parameterize tests
// over: "localhost", the IPv4 literal, and — when the host supports
// IPv6 — the IPv6 literal.
func LoopbackHosts() []string {
	hosts := []string{LocalhostName, IPv4Loopback}
	if HasIPv6() {
		hosts = append(hosts, IPv6Loopback)
	}
	return hosts
}
