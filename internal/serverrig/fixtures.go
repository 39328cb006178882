package serverrig

import (
	"net/http"

	"tlsrig/internal/certrig"
	"tlsrig/internal/gate"
	"tlsrig/internal/hostenv"
)

// Fixture bundles everything a test needs from a provisioned server: its
// connection parameters, the issuing authority (for building validating
// clients), and the running server itself.
type Fixture struct {
	Config    ServerConfig
	Authority *certrig.Authority
	Leaf      *certrig.Leaf
	Server    *Server
}

// Stop tears the fixture's server down. See Server.Stop.
func (f *Fixture) Stop() error {
	return f.Server.Stop()
}

// StartSANServer provisions a fresh authority, issues a SAN leaf for host
// (DNS SAN, or IP SAN when host is an IP literal), exports the material
// to dir, and starts an HTTPS server bound to host. The IPv6 loopback
// literal yields a skip on hosts without IPv6.
func StartSANServer(dir, host string, handler http.Handler, opts ...Option) (*Fixture, gate.Outcome) {
	if host == hostenv.IPv6Loopback && !hostenv.HasIPv6() {
		return nil, gate.Skip("requires IPv6 on loopback")
	}
	return startFixture(dir, host, certrig.ForHost(host), handler, opts...)
}

// StartNoSANServer is like StartSANServer but issues a common-name-only
// leaf with no SAN at all, for exercising clients that must reject
// legacy CN matching.
func StartNoSANServer(dir, host string, handler http.Handler, opts ...Option) (*Fixture, gate.Outcome) {
	if host == hostenv.IPv6Loopback && !hostenv.HasIPv6() {
		return nil, gate.Skip("requires IPv6 on loopback")
	}
	return startFixture(dir, host, certrig.CommonNameOnly(host), handler, opts...)
}

// StartIPSANServer starts a server on the IPv4 loopback with an IP SAN
// certificate for it.
func StartIPSANServer(dir string, handler http.Handler, opts ...Option) (*Fixture, gate.Outcome) {
	return startFixture(dir, hostenv.IPv4Loopback, certrig.ForHost(hostenv.IPv4Loopback), handler, opts...)
}

// StartIPv6SANServer starts a server on the IPv6 loopback with an IP SAN
// certificate for it. On hosts without IPv6 it yields a skip, never a
// bind error.
func StartIPv6SANServer(dir string, handler http.Handler, opts ...Option) (*Fixture, gate.Outcome) {
	if !hostenv.HasIPv6() {
		return nil, gate.Skip("requires IPv6 on loopback")
	}
	return startFixture(dir, hostenv.IPv6Loopback, certrig.ForHost(hostenv.IPv6Loopback), handler, opts...)
}

// startFixture is the common provisioning path: authority → leaf →
// export → server.
func startFixture(dir, host string, spec certrig.SubjectSpec, handler http.Handler, opts ...Option) (*Fixture, gate.Outcome) {
	authority, err := certrig.NewAuthority()
	if err != nil {
		return nil, gate.Failf("provision authority: %w", err)
	}

	leaf, err := authority.Issue(spec)
	if err != nil {
		return nil, gate.Failf("issue leaf for %s: %w", spec.Host(), err)
	}

	paths, err := certrig.Export(authority, leaf, dir)
	if err != nil {
		return nil, gate.Failf("export certificates: %w", err)
	}

	srv, err := Start(handler, leaf.TLSCertificate(), "https", host, opts...)
	if err != nil {
		return nil, gate.Failf("start server on %s: %w", host, err)
	}

	return &Fixture{
		Config: ServerConfig{
			Scheme:     "https",
			Host:       host,
			Port:       srv.Port(),
			CACertPath: paths.CACert,
		},
		Authority: authority,
		Leaf:      leaf,
		Server:    srv,
	}, gate.OK()
}
