package tlsprobe

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/crypto/cryptobyte"
)

// TLS wire constants needed to pick a ClientHello apart.
const (
	recordTypeHandshake        = 22
	handshakeTypeClientHello   = 1
	extensionSupportedVersions = 43
	maxCapturedHelloBytes      = 16 << 10 // one TLS record is plenty
)

// errIncompleteHello means more bytes are needed before the record can be
// parsed. Permanent parse failures return other errors.
var errIncompleteHello = errors.New("tlsprobe: client hello incomplete")

// HelloInfo is what the capture side learns from a ClientHello: the
// legacy record-layer version and, when the supported_versions extension
// is present, the versions the client actually offered.
type HelloInfo struct {
	LegacyVersion uint16
	Offered       []uint16
}

// OfferedNames returns the offered versions as conventional names. When
// the client sent no supported_versions extension (pre-1.3 hellos), the
// legacy version is the whole offer.
func (h *HelloInfo) OfferedNames() []string {
	if len(h.Offered) == 0 {
		return []string{VersionName(h.LegacyVersion)}
	}
	names := make([]string, 0, len(h.Offered))
	for _, v := range h.Offered {
		names = append(names, VersionName(v))
	}
	return names
}

// ParseClientHello parses the first TLS record of a connection as a
// ClientHello. It returns errIncompleteHello while data is still a prefix
// of a valid record, and a permanent error for anything that can never
// become one.
func ParseClientHello(data []byte) (*HelloInfo, error) {
	s := cryptobyte.String(data)

	var recType uint8
	var recVersion uint16
	var record cryptobyte.String
	if !s.ReadUint8(&recType) {
		return nil, errIncompleteHello
	}
	if recType != recordTypeHandshake {
		return nil, fmt.Errorf("record type %d is not a handshake", recType)
	}
	if !s.ReadUint16(&recVersion) || !s.ReadUint16LengthPrefixed(&record) {
		return nil, errIncompleteHello
	}

	var hsType uint8
	var body cryptobyte.String
	if !record.ReadUint8(&hsType) {
		return nil, errIncompleteHello
	}
	if hsType != handshakeTypeClientHello {
		return nil, fmt.Errorf("handshake type %d is not a client hello", hsType)
	}
	if !record.ReadUint24LengthPrefixed(&body) {
		return nil, errIncompleteHello
	}

	info := &HelloInfo{}
	var sessionID, cipherSuites, compression cryptobyte.String
	if !body.ReadUint16(&info.LegacyVersion) ||
		!body.Skip(32) || // client random
		!body.ReadUint8LengthPrefixed(&sessionID) ||
		!body.ReadUint16LengthPrefixed(&cipherSuites) ||
		!body.ReadUint8LengthPrefixed(&compression) {
		return nil, fmt.Errorf("malformed client hello body")
	}

	// Extensions are optional; a bare hello offers only its legacy version.
	if body.Empty() {
		return info, nil
	}
	var extensions cryptobyte.String
	if !body.ReadUint16LengthPrefixed(&extensions) {
		return nil, fmt.Errorf("malformed extensions block")
	}
	for !extensions.Empty() {
		var extType uint16
		var extData cryptobyte.String
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&extData) {
			return nil, fmt.Errorf("malformed extension")
		}
		if extType != extensionSupportedVersions {
			continue
		}
		var versions cryptobyte.String
		if !extData.ReadUint8LengthPrefixed(&versions) {
			return nil, fmt.Errorf("malformed supported_versions extension")
		}
		for !versions.Empty() {
			var v uint16
			if !versions.ReadUint16(&v) {
				return nil, fmt.Errorf("malformed supported_versions list")
			}
			info.Offered = append(info.Offered, v)
		}
	}
	return info, nil
}

// helloRecorder collects the most recent ClientHello seen by the probe
// server. The prober resets it before each handshake attempt.
type helloRecorder struct {
	mu   sync.Mutex
	last *HelloInfo
}

func (r *helloRecorder) observe(info *HelloInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = info
}

func (r *helloRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = nil
}

func (r *helloRecorder) take() *HelloInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.last
	r.last = nil
	return info
}

// captureListener wraps accepted connections so their first TLS record is
// fed to the recorder.
type captureListener struct {
	net.Listener
	rec *helloRecorder
}

func (l *captureListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &captureConn{Conn: conn, rec: l.rec}, nil
}

// captureConn tees bytes read by the TLS server into a buffer until a
// full ClientHello has been parsed (or the attempt is abandoned). The
// server's own view of the stream is untouched.
type captureConn struct {
	net.Conn
	rec  *helloRecorder
	buf  []byte
	done bool
}

func (c *captureConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if c.done || n == 0 {
		return n, err
	}
	c.buf = append(c.buf, p[:n]...)
	info, perr := ParseClientHello(c.buf)
	switch {
	case perr == nil:
		c.rec.observe(info)
		c.done = true
		c.buf = nil
	case !errors.Is(perr, errIncompleteHello) || len(c.buf) > maxCapturedHelloBytes:
		// Never going to parse; stop buffering.
		c.done = true
		c.buf = nil
	}
	return n, err
}
