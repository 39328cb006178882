package serverrig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tlsrig/internal/certrig"
	"tlsrig/internal/hostenv"
)

// validatingClient returns an HTTP client that trusts only the given root.
func validatingClient(pool *x509.CertPool) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}
}

// provision issues a leaf for host from a fresh authority.
func provision(t *testing.T, spec certrig.SubjectSpec) (*certrig.Authority, *certrig.Leaf) {
	t.Helper()
	authority, err := certrig.NewAuthority()
	require.NoError(t, err)
	leaf, err := authority.Issue(spec)
	require.NoError(t, err)
	return authority, leaf
}

func TestStartStop_AllLoopbackHosts(t *testing.T) {
	for _, host := range hostenv.LoopbackHosts() {
		t.Run(host, func(t *testing.T) {
			authority, leaf := provision(t, certrig.ForHost(host))

			srv, err := Start(EchoHandler(), leaf.TLSCertificate(), "https", host)
			require.NoError(t, err)
			assert.Positive(t, srv.Port(), "OS must assign a real port")

			cfg := ServerConfig{Scheme: "https", Host: host, Port: srv.Port()}
			resp, err := validatingClient(authority.CertPool()).Get(cfg.BaseURL())
			require.NoError(t, err, "validating client must reach the server")
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			require.NoError(t, srv.Stop())

			// After Stop returns, nothing accepts on that port anymore.
			_, err = net.DialTimeout("tcp", srv.Addr(), time.Second)
			assert.Error(t, err, "port must be released after Stop")
		})
	}
}

func TestStart_NameMismatchFailsVerification(t *testing.T) {
	authority, leaf := provision(t, certrig.ForHost("localhost"))

	srv, err := Start(EchoHandler(), leaf.TLSCertificate(), "https", "127.0.0.1")
	require.NoError(t, err)
	defer srv.Stop()

	// The cert says "localhost"; connecting by IP must fail name checks.
	url := fmt.Sprintf("https://127.0.0.1:%d", srv.Port())
	_, err = validatingClient(authority.CertPool()).Get(url)
	require.Error(t, err)

	var certErr *tls.CertificateVerificationError
	assert.ErrorAs(t, err, &certErr)
}

func TestStart_BindErrorPropagates(t *testing.T) {
	_, leaf := provision(t, certrig.ForHost("localhost"))

	// TEST-NET-3 address: never configured on a loopback interface.
	_, err := Start(EchoHandler(), leaf.TLSCertificate(), "https", "203.0.113.1")
	require.Error(t, err, "bind failure must surface synchronously from Start")
}

func TestStop_PortReusableImmediately(t *testing.T) {
	authority, leaf := provision(t, certrig.ForHost("127.0.0.1"))

	srv, err := Start(EchoHandler(), leaf.TLSCertificate(), "https", "127.0.0.1")
	require.NoError(t, err)

	resp, err := validatingClient(authority.CertPool()).Get(
		fmt.Sprintf("https://127.0.0.1:%d", srv.Port()))
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, srv.Stop())

	// Starting again on the same host right away must not hit
	// "address already in use".
	again, err := Start(EchoHandler(), leaf.TLSCertificate(), "https", "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, again.Stop())
}

func TestStop_Idempotent(t *testing.T) {
	_, leaf := provision(t, certrig.ForHost("localhost"))

	srv, err := Start(EchoHandler(), leaf.TLSCertificate(), "https", "localhost")
	require.NoError(t, err)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop(), "second Stop must return the first result, not misbehave")
}

func TestStop_TimesOutOnWedgedHandler(t *testing.T) {
	authority, leaf := provision(t, certrig.ForHost("127.0.0.1"))

	entered := make(chan struct{})
	release := make(chan struct{})
	wedged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	srv, err := Start(wedged, leaf.TLSCertificate(), "https", "127.0.0.1",
		WithStopTimeout(200*time.Millisecond))
	require.NoError(t, err)

	clientDone := make(chan struct{})
	go func() {
		defer close(clientDone)
		resp, err := validatingClient(authority.CertPool()).Get(
			fmt.Sprintf("https://127.0.0.1:%d", srv.Port()))
		if err == nil {
			resp.Body.Close()
		}
	}()

	// Only stop once a request is genuinely in flight.
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never entered")
	}

	err = srv.Stop()
	assert.ErrorIs(t, err, ErrStopTimeout)

	close(release)
	<-clientDone
}
