package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
)

// DefaultPort is the default HTTP port.
const DefaultPort = 8080

// DefaultShutdownTimeout bounds a graceful Stop.
const DefaultShutdownTimeout = 5 * time.Second

// ServerConfig configures an HTTP server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080" or "127.0.0.1:0").
	Address string

	// Prefix is the URL prefix of all verbs (default: "/woopsa").
	Prefix string

	// DisableCompression turns off gzip response compression.
	DisableCompression bool

	// ShutdownTimeout bounds Stop (default: 5s).
	ShutdownTimeout time.Duration

	// Logger for operational logging (optional).
	Logger *slog.Logger
}

// Server serves an interaction server over HTTP.
type Server struct {
	config   ServerConfig
	handler  *Handler
	http     *http.Server
	listener net.Listener

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a new HTTP server.
func NewServer(server *interaction.Server, config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	h := NewHandler(server, config.Prefix, config.Logger)
	var root http.Handler = h
	if !config.DisableCompression {
		root = h.Compressed()
	}

	mux := http.NewServeMux()
	mux.Handle(h.prefix+"/", root)

	return &Server{
		config:  config,
		handler: h,
		http:    &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
	}
}

// Start starts listening and serving in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.http.BaseContext = func(net.Listener) context.Context { return ctx }
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logError("http server stopped", err)
		}
	}()

	if s.config.Logger != nil {
		s.config.Logger.Info("http server listening", "addr", listener.Addr().String(), "prefix", s.handler.prefix)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests up to the
// shutdown timeout.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if err != nil {
		_ = s.http.Close()
	}
	s.wg.Wait()
	return err
}

// Addr returns the listening address, or nil if not started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL returns the base URL of the verbs, e.g. "http://127.0.0.1:8080/woopsa".
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == nil {
		return ""
	}
	host := addr.String()
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		host = net.JoinHostPort("127.0.0.1", fmt.Sprint(tcp.Port))
	}
	return "http://" + host + s.handler.prefix
}

func (s *Server) logError(msg string, err error) {
	if s.config.Logger != nil {
		s.config.Logger.Error(msg, "error", err)
	}
}
