package service

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/woopsa-protocol/woopsa-go/pkg/discovery"
	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/model"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscriber"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
	"github.com/woopsa-protocol/woopsa-go/pkg/transport"
	"github.com/woopsa-protocol/woopsa-go/pkg/version"
)

// State represents the server state.
type State uint8

const (
	// StateIdle - server created but not started.
	StateIdle State = iota

	// StateRunning - server is serving.
	StateRunning

	// StateStopped - server has stopped.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Server publishes an object hierarchy.
type Server struct {
	mu    sync.Mutex
	state State

	config   ServerConfig
	root     *model.Object
	resolver *subscription.ModelResolver
	subs     *subscription.Service
	server   *interaction.Server
	http     *transport.Server

	// Set while running
	advertiser discovery.Advertiser
	relay      *subscriber.Relay
	mounts     []*Client
	fileLog    *log.FileLogger
	cancel     context.CancelFunc
}

// NewServer creates a server for root. A nil root creates an empty object
// named after the configuration.
func NewServer(root *model.Object, config ServerConfig) (*Server, error) {
	d := DefaultServerConfig()
	if config.Name == "" {
		config.Name = d.Name
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if root == nil {
		root = model.NewObject(config.Name)
	}

	s := &Server{
		config:   config,
		root:     root,
		resolver: subscription.NewModelResolver(root),
	}

	if config.ProtocolLog != "" {
		fl, err := log.NewFileLogger(config.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("failed to open protocol log: %w", err)
		}
		s.fileLog = fl
	}

	subConfig := config.subscriptionConfig()
	subConfig.ProtocolLogger = s.protocolLogger()
	s.subs = subscription.NewService(s.resolver, subConfig)
	if err := root.AddItem(s.subs.Object()); err != nil {
		s.closeLog()
		return nil, fmt.Errorf("failed to add %s: %w", subscription.ServiceName, err)
	}

	s.server = interaction.NewServer(root)
	if err := s.server.InstallMultiRequest(); err != nil {
		s.closeLog()
		return nil, err
	}

	s.http = transport.NewServer(s.server, transport.ServerConfig{
		Address:            config.Address,
		Prefix:             config.Prefix,
		DisableCompression: config.DisableCompression,
		Logger:             config.Logger,
	})
	return s, nil
}

// protocolLogger combines the configured logger and the capture file.
func (s *Server) protocolLogger() log.Logger {
	var loggers []log.Logger
	if s.config.ProtocolLogger != nil {
		loggers = append(loggers, s.config.ProtocolLogger)
	}
	if s.fileLog != nil {
		loggers = append(loggers, s.fileLog)
	}
	switch len(loggers) {
	case 0:
		return nil
	case 1:
		return loggers[0]
	default:
		return log.NewMultiLogger(loggers...)
	}
}

// Root returns the published object.
func (s *Server) Root() *model.Object { return s.root }

// Interaction returns the verb dispatcher.
func (s *Server) Interaction() *interaction.Server { return s.server }

// Subscriptions returns the subscription service.
func (s *Server) Subscriptions() *subscription.Service { return s.subs }

// State returns the current state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the listening address, or nil if not running.
func (s *Server) Addr() net.Addr { return s.http.Addr() }

// URL returns the base URL of the verbs, or "" if not running.
func (s *Server) URL() string { return s.http.URL() }

// Mount mounts the server at baseURL as item name of the root.
func (s *Server) Mount(name, baseURL string) (*Client, error) {
	c, err := NewClient(baseURL, ClientConfig{Logger: s.config.Logger})
	if err != nil {
		return nil, err
	}
	if _, err := s.root.Mount(name, c); err != nil {
		_ = c.Close()
		return nil, err
	}

	s.mu.Lock()
	s.mounts = append(s.mounts, c)
	s.mu.Unlock()

	s.debugLog("mounted nested server", "name", name, "url", baseURL)
	return c, nil
}

// Start mounts the configured servers, starts the subscription service
// and serves HTTP. It advertises over mDNS if configured.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	ctx, s.cancel = context.WithCancel(ctx)
	if s.config.Relay {
		s.relay = subscriber.NewRelay(ctx, subscriber.Config{
			Logger:         s.config.Logger,
			ProtocolLogger: s.protocolLogger(),
		})
		s.resolver.Relay = s.relay.Func()
	}
	s.mu.Unlock()

	names := make([]string, 0, len(s.config.Mounts))
	for name := range s.config.Mounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := s.Mount(name, s.config.Mounts[name]); err != nil {
			_ = s.Stop()
			return fmt.Errorf("failed to mount %s: %w", name, err)
		}
	}

	s.subs.Start(ctx)
	if err := s.http.Start(ctx); err != nil {
		_ = s.Stop()
		return err
	}

	if s.config.Advertise {
		if err := s.advertise(ctx); err != nil {
			_ = s.Stop()
			return err
		}
	}
	return nil
}

func (s *Server) advertise(ctx context.Context) error {
	tcp, ok := s.http.Addr().(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("cannot advertise %v", s.http.Addr())
	}

	adv := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
		Interface: s.config.Interface,
		TTL:       discovery.DefaultTTL,
	})
	prefix := s.config.Prefix
	if prefix == "" {
		prefix = transport.DefaultPrefix
	}
	err := adv.Advertise(ctx, &discovery.ServerInfo{
		InstanceName: s.config.Name,
		Port:         uint16(tcp.Port),
		Path:         prefix,
		Version:      version.Current,
		Name:         s.root.Name(),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.advertiser = adv
	s.mu.Unlock()
	return nil
}

// Stop stops serving, closes all subscription channels and the mounted
// clients, and flushes the protocol log.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopped
	adv, relay, mounts, cancel := s.advertiser, s.relay, s.mounts, s.cancel
	s.advertiser, s.relay, s.mounts = nil, nil, nil
	s.mu.Unlock()

	if adv != nil {
		_ = adv.Stop()
	}
	err := s.http.Stop()
	s.subs.Close()
	if relay != nil {
		_ = relay.Close()
	}
	for _, c := range mounts {
		_ = c.Close()
	}
	cancel()
	s.closeLog()
	return err
}

func (s *Server) closeLog() {
	if s.fileLog != nil {
		if err := s.fileLog.Close(); err != nil && s.config.Logger != nil {
			s.config.Logger.Warn("failed to close protocol log", "error", err)
		}
	}
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
