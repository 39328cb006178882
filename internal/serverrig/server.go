package serverrig

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultStopTimeout bounds how long Stop waits for the accept loop to
// drain and exit. A server that cannot stop within this window is a
// defect worth failing loudly over, not hanging the whole test process.
const DefaultStopTimeout = 10 * time.Second

// ErrStopTimeout is returned by Stop when the serving goroutine does not
// exit within the configured stop timeout.
var ErrStopTimeout = errors.New("serverrig: server did not stop within timeout")

// Server is a running TLS-terminating HTTP server. Between Start and the
// completion of Stop, exactly one goroutine drives its accept loop and
// exactly one OS listening socket exists.
type Server struct {
	scheme string
	host   string
	port   int

	srv    *http.Server
	logger *slog.Logger

	stopTimeout time.Duration
	wrapRawConn func(net.Listener) net.Listener

	// done receives the accept loop's exit error exactly once. Shutdown
	// is requested through net/http's own goroutine-safe path and the
	// caller then waits on this channel, so no loop state is ever touched
	// from a foreign goroutine.
	done chan error

	stopOnce sync.Once
	stopErr  error
}

// Option adjusts how a Server is started.
type Option func(*Server)

// WithLogger replaces the default stderr text logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithStopTimeout replaces DefaultStopTimeout for this server.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Server) { s.stopTimeout = d }
}

// WithListenerWrap interposes on the raw TCP listener before TLS
// termination, letting callers observe the bytes of each connection.
// The capability prober uses it to capture ClientHellos.
func WithListenerWrap(wrap func(net.Listener) net.Listener) Option {
	return func(s *Server) { s.wrapRawConn = wrap }
}

// WithTLSConfig replaces the server's TLS configuration wholesale. The
// certificate passed to Start is still appended if the config carries
// none. Used by the capability prober to widen the accepted version
// range beyond the default.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Server) { s.srv.TLSConfig = cfg }
}

// Start binds a TLS listener on host with an OS-assigned ephemeral port,
// attaches handler, and begins serving on a dedicated goroutine. IPv4 and
// IPv6 literal hosts are handled identically. Bind errors propagate
// synchronously; there is no retry.
func Start(handler http.Handler, cert tls.Certificate, scheme, host string, opts ...Option) (*Server, error) {
	s := &Server{
		scheme: scheme,
		host:   host,
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		stopTimeout: DefaultStopTimeout,
		done:        make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if len(s.srv.TLSConfig.Certificates) == 0 {
		s.srv.TLSConfig.Certificates = []tls.Certificate{cert}
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", host, err)
	}
	s.port = ln.Addr().(*net.TCPAddr).Port

	if s.wrapRawConn != nil {
		ln = s.wrapRawConn(ln)
	}
	tlsLn := tls.NewListener(ln, s.srv.TLSConfig)

	go func() {
		s.done <- s.srv.Serve(tlsLn)
	}()

	s.logger.Info("test server started",
		"scheme", scheme,
		"host", host,
		"port", s.port,
	)
	return s, nil
}

// Port returns the OS-assigned listening port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the server's host:port with IPv6 hosts bracketed.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, fmt.Sprint(s.port))
}

// Stop requests listener shutdown and blocks until the serving goroutine
// has fully exited. After Stop returns nil, the port is released and no
// further connections are accepted. Stop is idempotent: later calls
// return the first call's result. The wait is bounded by the stop
// timeout; expiry returns ErrStopTimeout.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
		defer cancel()

		if err := s.srv.Shutdown(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				s.stopErr = ErrStopTimeout
				return
			}
			s.stopErr = fmt.Errorf("shutdown: %w", err)
			return
		}

		// Shutdown closed the listener; the accept loop exits with
		// ErrServerClosed. Wait for it so no goroutine outlives Stop.
		select {
		case err := <-s.done:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.stopErr = fmt.Errorf("accept loop: %w", err)
				return
			}
		case <-ctx.Done():
			s.stopErr = ErrStopTimeout
			return
		}

		s.logger.Info("test server stopped",
			"host", s.host,
			"port", s.port,
		)
	})
	return s.stopErr
}
