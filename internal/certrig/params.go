// Package certrig implements the certificate provisioning layer of the
// test rig: an in-memory root CA, leaf certificates with caller-chosen
// SAN shapes, and PEM materialization to disk. It has no server or
// probing concerns — it is the pure cryptographic layer.
package certrig

import (
	"crypto/x509"
	"time"
)

// Validity periods. These certs live for the duration of a test run, so
// short windows are fine; NotBefore is backdated to absorb clock skew
// between the issuing process and any validator.
const (
	// AuthorityValidity is how long a generated root certificate is valid.
	AuthorityValidity = 24 * time.Hour

	// LeafValidity is how long issued leaf certificates are valid.
	LeafValidity = 24 * time.Hour

	// ClockSkewGrace backdates NotBefore so a cert issued "now" is never
	// rejected by a validator whose clock runs slightly behind.
	ClockSkewGrace = time.Hour
)

// Default subject fields.
const (
	DefaultOrganization        = "tlsrig"
	DefaultAuthorityCommonName = "tlsrig Test Root CA"
)

// AuthorityKeyUsages defines the X.509 key usage flags for the root.
// CertSign: the CA signs leaf certificates.
// CRLSign: included for standards compliance; the rig does not revoke.
const AuthorityKeyUsages = x509.KeyUsageCertSign | x509.KeyUsageCRLSign

// LeafKeyUsages defines the X.509 key usage flags for leaf certificates.
// DigitalSignature is all an ECDSA TLS handshake needs; KeyEncipherment
// is only valid for RSA keys and is deliberately omitted.
const LeafKeyUsages = x509.KeyUsageDigitalSignature

// LeafExtKeyUsages defines the extended key usage for leaf certificates.
// ServerAuth and ClientAuth — the same leaf can serve either side of a
// handshake in a test.
var LeafExtKeyUsages = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
