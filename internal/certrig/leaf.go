package certrig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
	"time"
)

// SubjectSpec describes the identity a leaf certificate encodes. Exactly
// one SAN shape is chosen: a DNS name, an IP address, or no SAN at all
// (common-name only, for exercising clients that must reject legacy
// CN-based matching).
type SubjectSpec struct {
	commonName string
	dnsName    string
	ip         net.IP
}

// ForHost returns a spec for the given host. An IP literal (IPv4 or IPv6)
// becomes an IP SAN; anything else becomes a DNS SAN. The host is also
// used as the certificate's CommonName.
func ForHost(host string) SubjectSpec {
	if ip := net.ParseIP(host); ip != nil {
		return SubjectSpec{commonName: host, ip: ip}
	}
	return SubjectSpec{commonName: host, dnsName: host}
}

// CommonNameOnly returns a spec that encodes no SAN whatsoever — only the
// subject CommonName. Certificates issued from it must fail modern
// SAN-based hostname verification even when the root is trusted.
func CommonNameOnly(cn string) SubjectSpec {
	return SubjectSpec{commonName: cn}
}

// Host returns the host the spec encodes, regardless of SAN shape.
func (s SubjectSpec) Host() string {
	return s.commonName
}

// Leaf holds an end-entity certificate's private key and certificate,
// issued and signed by an Authority.
type Leaf struct {
	Key  *ecdsa.PrivateKey
	Cert *x509.Certificate
	Raw  []byte // DER-encoded certificate
}

// Issue generates a leaf certificate for the given subject, signed by the
// authority. The chain is authority→leaf only; validity uses LeafValidity
// with NotBefore backdated by ClockSkewGrace.
func (a *Authority) Issue(spec SubjectSpec) (*Leaf, error) {
	if spec.commonName == "" {
		return nil, fmt.Errorf("subject spec has no host")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate leaf key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("generate leaf serial: %w", err)
	}

	ski, err := subjectKeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{DefaultOrganization},
			CommonName:   spec.commonName,
		},
		NotBefore:             now.Add(-ClockSkewGrace),
		NotAfter:              now.Add(LeafValidity),
		KeyUsage:              LeafKeyUsages,
		ExtKeyUsage:           LeafExtKeyUsages,
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          ski,
	}
	if spec.dnsName != "" {
		template.DNSNames = []string{spec.dnsName}
	}
	if spec.ip != nil {
		template.IPAddresses = []net.IP{spec.ip}
	}

	// Signed by the authority.
	der, err := x509.CreateCertificate(rand.Reader, template, a.Cert, &key.PublicKey, a.Key)
	if err != nil {
		return nil, fmt.Errorf("create leaf certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse leaf certificate: %w", err)
	}

	return &Leaf{
		Key:  key,
		Cert: cert,
		Raw:  der,
	}, nil
}

// TLSCertificate returns the leaf as a tls.Certificate ready to hand to a
// TLS-terminating server.
func (l *Leaf) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{l.Raw},
		PrivateKey:  l.Key,
		Leaf:        l.Cert,
	}
}

// subjectKeyID computes the SubjectKeyIdentifier per RFC 5280 §4.2.1.2 —
// SHA-256 hash of the DER-encoded public key bit string. Go only
// auto-generates this for CA certs, so leaves set it explicitly.
func subjectKeyID(pub *ecdsa.PublicKey) ([]byte, error) {
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal leaf public key: %w", err)
	}
	// The PKIX structure wraps the key in a BIT STRING inside a SEQUENCE.
	// We hash the raw BIT STRING value (the actual key bytes).
	var spki struct {
		Algorithm asn1.RawValue
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(pubDER, &spki); err != nil {
		return nil, fmt.Errorf("unmarshal SPKI: %w", err)
	}
	sum := sha256.Sum256(spki.PublicKey.Bytes)
	return sum[:], nil
}
