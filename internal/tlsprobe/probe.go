package tlsprobe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"tlsrig/internal/certrig"
	"tlsrig/internal/hostenv"
	"tlsrig/internal/serverrig"
)

// handshakeTimeout bounds each probe attempt so a wedged handshake cannot
// stall the whole session.
const handshakeTimeout = 5 * time.Second

// Report is the probe's full result: the set of versions that completed a
// handshake, plus — per candidate — the versions the client offered in
// its captured ClientHello.
type Report struct {
	// Versions holds the negotiated version name of every candidate whose
	// handshake succeeded. A candidate may contribute a different name
	// than its own when it is an umbrella selector.
	Versions Set

	// Offered maps candidate name to the version names found in the
	// captured ClientHello's supported_versions extension (or the legacy
	// version for pre-1.3 hellos).
	Offered map[string][]string
}

// session caches the probe result for the process lifetime. The probe runs
// before any concurrent fixture activity, once, with no reinitialization
// path.
var session = sync.OnceValues(runProbe)

// Probe returns the session's cached probe report, running the probe on
// first call.
func Probe() (*Report, error) {
	return session()
}

// SupportedVersions returns the set of TLS version names the current
// process and OS crypto policy can actually negotiate, computed once per
// session.
func SupportedVersions() (Set, error) {
	report, err := Probe()
	if err != nil {
		return nil, err
	}
	return report.Versions, nil
}

// runProbe starts one throwaway HTTPS server on the IPv4 loopback and
// attempts a handshake per candidate version. Handshake failures are the
// expected signal for a disabled version and are recorded as absence;
// only infrastructure errors (no server, no TCP) are returned.
func runProbe() (*Report, error) {
	authority, err := certrig.NewAuthority()
	if err != nil {
		return nil, fmt.Errorf("provision probe authority: %w", err)
	}
	leaf, err := authority.Issue(certrig.ForHost(hostenv.IPv4Loopback))
	if err != nil {
		return nil, fmt.Errorf("issue probe certificate: %w", err)
	}

	rec := &helloRecorder{}
	srv, err := serverrig.Start(serverrig.EchoHandler(), leaf.TLSCertificate(), "https", hostenv.IPv4Loopback,
		// The probe server must accept everything the library can speak;
		// the client side pins the candidate under test.
		serverrig.WithTLSConfig(&tls.Config{
			Certificates: []tls.Certificate{leaf.TLSCertificate()},
			MinVersion:   tls.VersionTLS10,
		}),
		serverrig.WithListenerWrap(func(ln net.Listener) net.Listener {
			return &captureListener{Listener: ln, rec: rec}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("start probe server: %w", err)
	}

	report := &Report{
		Versions: make(Set),
		Offered:  make(map[string][]string),
	}

	for _, c := range candidates {
		if !c.umbrella {
			if _, ok := Defined(c.name); !ok {
				// Unsupported at build time; never probed.
				continue
			}
		}
		rec.reset()
		if name, ok := attempt(srv.Addr(), c); ok {
			report.Versions[name] = struct{}{}
		}
		if info := rec.take(); info != nil {
			report.Offered[c.name] = info.OfferedNames()
		}
	}

	if err := srv.Stop(); err != nil {
		return nil, fmt.Errorf("stop probe server: %w", err)
	}
	return report, nil
}

// attempt opens a raw TCP connection to addr and forces a handshake with
// the candidate version pinned (umbrella candidates leave negotiation to
// the library). It returns the negotiated version name on success; a
// failed handshake means the version is unusable here, which is an
// expected outcome, not an error.
func attempt(addr string, c candidate) (string, bool) {
	raw, err := net.DialTimeout("tcp", addr, handshakeTimeout)
	if err != nil {
		return "", false
	}
	defer raw.Close()

	// Certificate validation is irrelevant to a version probe; this is
	// the only place the rig disables it.
	cfg := &tls.Config{InsecureSkipVerify: true}
	if !c.umbrella {
		version, _ := Defined(c.name)
		cfg.MinVersion = version
		cfg.MaxVersion = version
	}

	conn := tls.Client(raw, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(ctx); err != nil {
		return "", false
	}
	defer conn.Close()
	return VersionName(conn.ConnectionState().Version), true
}
