// Package serverrig manages the lifecycle of TLS-terminating test servers:
// it binds a listener on an OS-assigned port, drives the accept loop on a
// dedicated goroutine, and tears the whole thing down synchronously so no
// port or goroutine outlives a test.
package serverrig

import (
	"fmt"
	"net"
	"strconv"
)

// ServerConfig describes a running server's connection parameters. It is
// created once when the server starts and is read-only for the lifetime
// of the test using it.
type ServerConfig struct {
	// Scheme is the URL scheme, normally "https".
	Scheme string

	// Host is the address the server was asked to bind: a hostname, an
	// IPv4 literal, or an IPv6 literal.
	Host string

	// Port is the OS-assigned listening port.
	Port int

	// CACertPath is the path to the PEM root certificate that validates
	// the server's leaf. The client under test uses it as trust anchor.
	CACertPath string
}

// BaseURL renders the server's base URL. IPv6 literal hosts are bracketed:
// ("https", "::1", 8443) renders as "https://[::1]:8443".
func (c ServerConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s", c.Scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}
