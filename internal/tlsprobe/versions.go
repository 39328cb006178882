// Package tlsprobe determines which TLS protocol versions the current
// process and OS crypto policy can actually negotiate. Compiled-in support
// is not enough: distro policy (Ubuntu 20.04 famously disables TLSv1 and
// TLSv1.1) can reject a version the library defines, so the only reliable
// answer comes from attempting real handshakes against a throwaway server.
package tlsprobe

import (
	"crypto/tls"
	"fmt"
	"sort"
)

// Version names use the classic OpenSSL-style spelling so gate reasons
// and probe output read the same as every TLS tool's.
const (
	VersionTLS10Name = "TLSv1"
	VersionTLS11Name = "TLSv1.1"
	VersionTLS12Name = "TLSv1.2"
	VersionTLS13Name = "TLSv1.3"

	// AnyTLSName is the umbrella candidate: no version pinned, the
	// library negotiates whatever it likes best.
	AnyTLSName = "TLS"
)

// buildVersions is the explicit capability table of version constants the
// linked TLS library defines. A version absent from this table is
// unsupported at build time and is never probed, so it can never appear
// in a probe result.
var buildVersions = map[string]uint16{
	VersionTLS10Name: tls.VersionTLS10,
	VersionTLS11Name: tls.VersionTLS11,
	VersionTLS12Name: tls.VersionTLS12,
	VersionTLS13Name: tls.VersionTLS13,
}

// Defined reports whether the linked TLS library defines the named
// protocol version, and if so its wire constant.
func Defined(name string) (uint16, bool) {
	v, ok := buildVersions[name]
	return v, ok
}

// VersionName renders a TLS wire version constant as its conventional
// name. Unknown values render as hex.
func VersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return VersionTLS10Name
	case tls.VersionTLS11:
		return VersionTLS11Name
	case tls.VersionTLS12:
		return VersionTLS12Name
	case tls.VersionTLS13:
		return VersionTLS13Name
	default:
		return fmt.Sprintf("0x%04x", v)
	}
}

// Set is an immutable set of negotiated version names, computed once per
// process by the prober.
type Set map[string]struct{}

// Has reports whether the named version is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the set's members in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// candidate is one protocol version the prober attempts. An umbrella
// candidate pins nothing and lets the library negotiate freely; that is
// how the newest version (TLSv1.3 today) enters the result set.
type candidate struct {
	name     string
	umbrella bool
}

// candidates is the fixed probe list.
var candidates = []candidate{
	{name: VersionTLS10Name},
	{name: VersionTLS11Name},
	{name: VersionTLS12Name},
	{name: AnyTLSName, umbrella: true},
}
