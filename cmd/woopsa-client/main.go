// Command woopsa-client is an interactive client for Woopsa servers.
//
// It reads, writes and invokes server items, and subscribes to properties
// through a subscription channel, printing notifications as they arrive.
//
// Usage:
//
//	woopsa-client [flags] [command [args...]]
//
// Without a command, an interactive shell is started. With a command, it
// is executed once, e.g. "woopsa-client read /Votes".
//
// Flags:
//
//	--url string            Base URL of the server (default "http://localhost:8080/woopsa")
//	--instance string       Find the server by mDNS instance name instead of --url
//	--interface string      Network interface for mDNS (default: all)
//	--timeout duration      Request timeout
//	--queue-size int        Notification queue size requested for the channel
//	--protocol-log string   Write protocol events to a capture file
//	--log-level string      Log level: debug, info, warn, error (default "warn")
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

	"github.com/woopsa-protocol/woopsa-go/cmd/woopsa-client/interactive"
	"github.com/woopsa-protocol/woopsa-go/pkg/discovery"
	wlog "github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/service"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscriber"
)

var (
	baseURL     string
	instance    string
	iface       string
	timeout     time.Duration
	queueSize   int
	protocolLog string
	logLevel    string
)

func init() {
	pflag.StringVar(&baseURL, "url", "http://localhost:8080/woopsa", "Base URL of the server")
	pflag.StringVar(&instance, "instance", "", "Find the server by mDNS instance name instead of --url")
	pflag.StringVar(&iface, "interface", "", "Network interface for mDNS (default: all)")
	pflag.DurationVar(&timeout, "timeout", 0, "Request timeout")
	pflag.IntVar(&queueSize, "queue-size", 0, "Notification queue size requested for the channel")
	pflag.StringVar(&protocolLog, "protocol-log", "", "Write protocol events to a capture file")
	pflag.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

func main() {
	pflag.Parse()

	logger := newLogger(logLevel)
	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: iface})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	url := baseURL
	if instance != "" {
		svc, err := browser.Find(ctx, instance)
		if err != nil {
			log.Fatalf("Failed to find %s: %v", instance, err)
		}
		url = svc.URL()
		log.Printf("Found %s at %s", instance, url)
	}

	config := service.ClientConfig{
		Timeout:    timeout,
		Subscriber: subscriber.DefaultConfig(),
		Logger:     logger,
	}
	if queueSize > 0 {
		config.Subscriber.QueueSize = queueSize
	}
	if protocolLog != "" {
		fl, err := wlog.NewFileLogger(protocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fl.Close()
		config.ProtocolLogger = fl
	}

	client, err := service.NewClient(url, config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing client: %v", err)
		}
	}()

	if pflag.NArg() > 0 {
		shell := interactive.NewShell(client, browser, os.Stdout)
		shell.Execute(ctx, strings.Join(pflag.Args(), " "))
		return
	}

	shell, err := interactive.New(client, browser)
	if err != nil {
		log.Fatalf("Failed to start shell: %v", err)
	}
	log.SetOutput(shell.Stdout())
	fmt.Fprintf(shell.Stdout(), "Connected to %s\n", client.URL())
	shell.Run(ctx, cancel)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	log.SetFlags(log.Ltime)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
