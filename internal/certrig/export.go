package certrig

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// On-disk layout within an export directory:
//
//   <dir>/
//     ca.pem       (0644)  root certificate
//     server.pem   (0644)  leaf certificate chain
//     server.key   (0600)  leaf private key
//
// The server consumes server.pem + server.key; the client under test
// consumes ca.pem as its trust anchor. Tests use a fresh temp directory
// per export, but re-exporting into the same directory overwrites cleanly.

const (
	caCertFile     = "ca.pem"
	serverCertFile = "server.pem"
	serverKeyFile  = "server.key"

	keyFilePerms = 0600
	certPerms    = 0644
)

// Paths holds the locations of the three exported PEM files.
type Paths struct {
	CACert     string
	ServerCert string
	ServerKey  string
}

// Export writes the authority's root certificate, the leaf certificate
// chain, and the leaf private key as PEM files inside dir. The directory
// must already exist. Existing files are replaced atomically, never
// appended to.
func Export(a *Authority, leaf *Leaf, dir string) (Paths, error) {
	p := Paths{
		CACert:     filepath.Join(dir, caCertFile),
		ServerCert: filepath.Join(dir, serverCertFile),
		ServerKey:  filepath.Join(dir, serverKeyFile),
	}

	if err := writeCert(p.CACert, a.Raw); err != nil {
		return Paths{}, fmt.Errorf("export CA cert: %w", err)
	}
	if err := writeCert(p.ServerCert, leaf.Raw); err != nil {
		return Paths{}, fmt.Errorf("export server cert: %w", err)
	}
	if err := writeKey(p.ServerKey, leaf.Key); err != nil {
		return Paths{}, fmt.Errorf("export server key: %w", err)
	}
	return p, nil
}

// --- PEM helpers ---

func writeKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	return writeFileAtomic(path, pem.EncodeToMemory(block), keyFilePerms)
}

func writeCert(path string, der []byte) error {
	block := &pem.Block{Type: "CERTIFICATE", Bytes: der}
	return writeFileAtomic(path, pem.EncodeToMemory(block), certPerms)
}

// writeFileAtomic writes data to a temporary file then renames it into place.
// This prevents partial writes from corrupting existing files.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename %s -> %s: %w", tmp, path, err)
	}
	return nil
}
