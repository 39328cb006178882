package certrig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// Authority holds a root CA's private key and self-signed certificate,
// kept entirely in memory. Each test provisions its own Authority; nothing
// is shared or persisted beyond what Export writes out.
type Authority struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate
	Raw  []byte // DER-encoded certificate
}

// NewAuthority creates a fresh self-signed root CA certificate and key pair.
func NewAuthority() (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate authority key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("generate authority serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{DefaultOrganization},
			CommonName:   DefaultAuthorityCommonName,
		},
		NotBefore:             now.Add(-ClockSkewGrace),
		NotAfter:              now.Add(AuthorityValidity),
		KeyUsage:              AuthorityKeyUsages,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            0,    // This root only signs leaf certs, not intermediates.
		MaxPathLenZero:        true, // Explicitly encode MaxPathLen:0.
	}

	// Self-signed: issuer = subject, signed with own key.
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create authority certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse authority certificate: %w", err)
	}

	return &Authority{
		Key:  key,
		Cert: cert,
		Raw:  der,
	}, nil
}

// CertPool returns a pool containing only this authority's root, suitable
// as the trust anchor for a client validating certs issued by it.
func (a *Authority) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Cert)
	return pool
}

// randomSerial generates a random 128-bit serial number for a certificate.
// X.509 serial numbers must be positive integers unique per CA. Using
// crypto/rand with 128 bits makes collisions astronomically unlikely
// without needing a counter or database.
func randomSerial() (*big.Int, error) {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, fmt.Errorf("generate random serial: %w", err)
	}
	return serial, nil
}
