// Command woopsa-server publishes a demo object tree over the Woopsa
// protocol, including the SubscriptionService.
//
// Usage:
//
//	woopsa-server [flags]
//
// Flags:
//
//	--config string          YAML configuration file
//	--name string            Root object and mDNS instance name (default "Woopsa")
//	--address string         Listen address (default ":8080")
//	--prefix string          URL prefix of the verbs (default "/woopsa")
//	--mount name=url         Mount a nested server (repeatable)
//	--no-relay               Sample mounted properties instead of relaying subscriptions
//	--advertise              Advertise the server via mDNS
//	--interface string       Network interface for mDNS (default: all)
//	--queue-size int         Default notification queue size
//	--wait-timeout duration  Long-poll timeout of WaitNotification
//	--protocol-log string    Write protocol events to a capture file
//	--log-level string       Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start with defaults
//	woopsa-server
//
//	# Publish a nested server below /Plant2 and advertise both
//	woopsa-server --mount Plant2=http://10.0.0.5:8080/woopsa --advertise
//
//	# Record the subscription traffic
//	woopsa-server --protocol-log server.wlog
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/woopsa-protocol/woopsa-go/pkg/service"
	"github.com/woopsa-protocol/woopsa-go/pkg/version"
)

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile      string
	Name            string
	Address         string
	Prefix          string
	Mounts          []string
	NoRelay         bool
	Advertise       bool
	Interface       string
	QueueSize       int
	WaitTimeout     time.Duration
	ChannelLifetime time.Duration
	ProtocolLog     string
	LogLevel        string
	Simulate        bool
}

var flags Flags

func init() {
	registerFlags(pflag.CommandLine, &flags)
}

func registerFlags(fs *pflag.FlagSet, f *Flags) {
	fs.StringVar(&f.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&f.Name, "name", service.DefaultServerName, "Root object and mDNS instance name")
	fs.StringVar(&f.Address, "address", ":8080", "Listen address")
	fs.StringVar(&f.Prefix, "prefix", "/woopsa", "URL prefix of the verbs")
	fs.StringArrayVar(&f.Mounts, "mount", nil, "Mount a nested server as name=url (repeatable)")
	fs.BoolVar(&f.NoRelay, "no-relay", false, "Sample mounted properties instead of relaying subscriptions")
	fs.BoolVar(&f.Advertise, "advertise", false, "Advertise the server via mDNS")
	fs.StringVar(&f.Interface, "interface", "", "Network interface for mDNS (default: all)")
	fs.IntVar(&f.QueueSize, "queue-size", 0, "Default notification queue size")
	fs.DurationVar(&f.WaitTimeout, "wait-timeout", 0, "Long-poll timeout of WaitNotification")
	fs.DurationVar(&f.ChannelLifetime, "channel-lifetime", 0, "Idle lifetime of subscription channels")
	fs.StringVar(&f.ProtocolLog, "protocol-log", "", "Write protocol events to a capture file")
	fs.StringVar(&f.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.Simulate, "simulate", true, "Cast a vote every few seconds")
}

func main() {
	pflag.Parse()

	logger := newLogger(flags.LogLevel)

	config, err := buildConfig(pflag.CommandLine, flags)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	config.Logger = logger

	log.Printf("Woopsa Server %s", version.Current)
	log.Printf("Name: %s", config.Name)

	demo, err := NewDemo(config.Name)
	if err != nil {
		log.Fatalf("Failed to build object tree: %v", err)
	}

	srv, err := service.NewServer(demo.Root(), config)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Listening on %s (state: %s)", srv.URL(), srv.State())
	if config.Advertise {
		log.Println("Advertising via mDNS")
	}

	if flags.Simulate {
		go demo.Simulate(ctx, 5*time.Second)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	log.Println("Shutting down...")

	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	log.Println("Goodbye!")
}

// buildConfig loads the configuration file, if any, and applies the flags
// set on the command line on top of it.
func buildConfig(fs *pflag.FlagSet, f Flags) (service.ServerConfig, error) {
	config := service.DefaultServerConfig()
	if f.ConfigFile != "" {
		c, err := service.LoadServerConfig(f.ConfigFile)
		if err != nil {
			return config, err
		}
		config = c
	}

	if fs.Changed("name") {
		config.Name = f.Name
	}
	if fs.Changed("address") {
		config.Address = f.Address
	}
	if fs.Changed("prefix") {
		config.Prefix = f.Prefix
	}
	if fs.Changed("no-relay") {
		config.Relay = !f.NoRelay
	}
	if fs.Changed("advertise") {
		config.Advertise = f.Advertise
	}
	if fs.Changed("interface") {
		config.Interface = f.Interface
	}
	if fs.Changed("queue-size") {
		config.Subscription.QueueSize = f.QueueSize
	}
	if fs.Changed("wait-timeout") {
		config.Subscription.WaitTimeout = f.WaitTimeout
	}
	if fs.Changed("channel-lifetime") {
		config.Subscription.ChannelLifetime = f.ChannelLifetime
	}
	if fs.Changed("protocol-log") {
		config.ProtocolLog = f.ProtocolLog
	}

	for _, m := range f.Mounts {
		name, url, ok := strings.Cut(m, "=")
		if !ok || name == "" || url == "" {
			return config, fmt.Errorf("invalid mount %q (want name=url)", m)
		}
		if config.Mounts == nil {
			config.Mounts = make(map[string]string)
		}
		config.Mounts[name] = url
	}

	return config, config.Validate()
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
		log.SetFlags(log.Ltime | log.Lmicroseconds)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
