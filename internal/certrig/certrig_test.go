package certrig

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Authority tests ---

func TestNewAuthority(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	assert.True(t, a.Cert.IsCA, "root must be a CA")
	assert.True(t, a.Cert.MaxPathLenZero, "root must not sign intermediates")
	assert.Equal(t, a.Cert.Subject.String(), a.Cert.Issuer.String(), "root must be self-signed")
	require.NoError(t, a.Cert.CheckSignatureFrom(a.Cert), "self-signature must verify")
}

func TestNewAuthority_FreshKeyPerCall(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	b, err := NewAuthority()
	require.NoError(t, err)

	assert.False(t, a.Key.PublicKey.Equal(&b.Key.PublicKey), "authorities must not share keys")
	assert.NotEqual(t, a.Cert.SerialNumber, b.Cert.SerialNumber)
}

// --- Issuance tests ---

func TestIssue_DNSSAN(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	leaf, err := a.Issue(ForHost("localhost"))
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost"}, leaf.Cert.DNSNames)
	assert.Empty(t, leaf.Cert.IPAddresses)
	assert.False(t, leaf.Cert.IsCA)

	// Validates for the exact SAN against the issuing root...
	_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: a.CertPool(), DNSName: "localhost"})
	require.NoError(t, err)

	// ...and fails name verification for anything else.
	_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: a.CertPool(), DNSName: "example.test"})
	var hostErr x509.HostnameError
	assert.ErrorAs(t, err, &hostErr)
}

func TestIssue_IPSAN(t *testing.T) {
	tests := []struct {
		name string
		host string
	}{
		{"ipv4 loopback", "127.0.0.1"},
		{"ipv6 loopback", "::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAuthority()
			require.NoError(t, err)

			leaf, err := a.Issue(ForHost(tt.host))
			require.NoError(t, err)

			require.Len(t, leaf.Cert.IPAddresses, 1)
			assert.True(t, leaf.Cert.IPAddresses[0].Equal(net.ParseIP(tt.host)))
			assert.Empty(t, leaf.Cert.DNSNames, "IP literal must not produce a DNS SAN")

			_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: a.CertPool(), DNSName: tt.host})
			require.NoError(t, err)
		})
	}
}

func TestIssue_CommonNameOnly(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	leaf, err := a.Issue(CommonNameOnly("localhost"))
	require.NoError(t, err)

	assert.Empty(t, leaf.Cert.DNSNames)
	assert.Empty(t, leaf.Cert.IPAddresses)
	assert.Equal(t, "localhost", leaf.Cert.Subject.CommonName)

	// Chain is trusted...
	_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: a.CertPool()})
	require.NoError(t, err)

	// ...but SAN-based hostname verification must still fail, even for
	// the exact CommonName.
	_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: a.CertPool(), DNSName: "localhost"})
	assert.Error(t, err)
}

func TestIssue_ChainDoesNotValidateAgainstForeignRoot(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	other, err := NewAuthority()
	require.NoError(t, err)

	leaf, err := a.Issue(ForHost("localhost"))
	require.NoError(t, err)

	_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: other.CertPool(), DNSName: "localhost"})
	assert.Error(t, err, "leaf must only validate against its issuing root")
}

func TestIssue_EmptySpecRejected(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)

	_, err = a.Issue(SubjectSpec{})
	assert.Error(t, err)
}

func TestSubjectSpec_Host(t *testing.T) {
	assert.Equal(t, "localhost", ForHost("localhost").Host())
	assert.Equal(t, "::1", ForHost("::1").Host())
	assert.Equal(t, "legacy.test", CommonNameOnly("legacy.test").Host())
}

// --- Export tests ---

func TestExport(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	leaf, err := a.Issue(ForHost("localhost"))
	require.NoError(t, err)

	dir := t.TempDir()
	paths, err := Export(a, leaf, dir)
	require.NoError(t, err)

	// Server side: the exported pair must load as a key pair.
	_, err = tls.LoadX509KeyPair(paths.ServerCert, paths.ServerKey)
	require.NoError(t, err)

	// Client side: the exported root must work as a trust anchor.
	caPEM, err := os.ReadFile(paths.CACert)
	require.NoError(t, err)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(caPEM))
	_, err = leaf.Cert.Verify(x509.VerifyOptions{Roots: pool, DNSName: "localhost"})
	require.NoError(t, err)

	// The private key must not be group- or world-readable.
	info, err := os.Stat(paths.ServerKey)
	require.NoError(t, err)
	assert.Zero(t, info.Mode().Perm()&0o077, "key file must be owner-only")
}

func TestExport_OverwritesCleanly(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	dir := t.TempDir()

	first, err := a.Issue(ForHost("localhost"))
	require.NoError(t, err)
	_, err = Export(a, first, dir)
	require.NoError(t, err)

	second, err := a.Issue(ForHost("localhost"))
	require.NoError(t, err)
	paths, err := Export(a, second, dir)
	require.NoError(t, err)

	// The file must contain exactly the second leaf, not an appended pair.
	data, err := os.ReadFile(paths.ServerCert)
	require.NoError(t, err)

	block, rest := pem.Decode(data)
	require.NotNil(t, block)
	assert.Empty(t, rest, "overwrite must not append PEM blocks")

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, second.Cert.SerialNumber, cert.SerialNumber)
}

// --- End-to-end handshake over the in-memory material ---

func TestTLSCertificate_Handshake(t *testing.T) {
	a, err := NewAuthority()
	require.NoError(t, err)
	leaf, err := a.Issue(ForHost("localhost"))
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{leaf.TLSCertificate()},
		MinVersion:   tls.VersionTLS12,
	})
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.(*tls.Conn).Handshake()
		conn.Close()
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{
		RootCAs:    a.CertPool(),
		ServerName: "localhost",
	})
	require.NoError(t, err, "validating handshake against the issued leaf must succeed")
	conn.Close()
}
