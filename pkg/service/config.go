package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/woopsa-protocol/woopsa-go/pkg/discovery"
	"github.com/woopsa-protocol/woopsa-go/pkg/log"
	"github.com/woopsa-protocol/woopsa-go/pkg/subscription"
	"github.com/woopsa-protocol/woopsa-go/pkg/transport"
)

// Service errors.
var (
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultServerName is the root object name and mDNS instance name used
// when none is configured.
const DefaultServerName = "Woopsa"

// ServerConfig configures a Server. It can be loaded from YAML.
type ServerConfig struct {
	// Name is the root object name and the mDNS instance name.
	Name string `yaml:"name"`

	// Address to listen on (default ":8080").
	Address string `yaml:"address"`

	// Prefix is the URL prefix of the verbs (default "/woopsa").
	Prefix string `yaml:"prefix"`

	// DisableCompression turns off gzip responses.
	DisableCompression bool `yaml:"disable_compression"`

	// Advertise enables mDNS advertising on Interface (empty: all).
	Advertise bool   `yaml:"advertise"`
	Interface string `yaml:"interface"`

	// Subscription configures the SubscriptionService.
	Subscription SubscriptionConfig `yaml:"subscription"`

	// Mounts maps item names to base URLs of nested servers.
	Mounts map[string]string `yaml:"mounts"`

	// Relay forwards subscriptions below mounts to the nested servers'
	// subscription services instead of sampling them.
	Relay bool `yaml:"relay"`

	// ProtocolLog is the path of a protocol capture file (optional).
	ProtocolLog string `yaml:"protocol_log"`

	// Logger for operational logging (optional).
	Logger *slog.Logger `yaml:"-"`

	// ProtocolLogger receives protocol events in addition to ProtocolLog
	// (optional).
	ProtocolLogger log.Logger `yaml:"-"`
}

// SubscriptionConfig is the YAML form of subscription.Config.
type SubscriptionConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	ChannelLifetime time.Duration `yaml:"channel_lifetime"`
	WaitTimeout     time.Duration `yaml:"wait_timeout"`
	MaxChannels     int           `yaml:"max_channels"`
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:    DefaultServerName,
		Address: fmt.Sprintf(":%d", transport.DefaultPort),
		Prefix:  transport.DefaultPrefix,
		Subscription: SubscriptionConfig{
			QueueSize:       subscription.DefaultQueueSize,
			ChannelLifetime: subscription.DefaultChannelLifetime,
			WaitTimeout:     subscription.DefaultWaitTimeout,
		},
		Relay: true,
	}
}

// LoadServerConfig reads a YAML configuration file. Fields missing from
// the file keep their defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	config := DefaultServerConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks the configuration.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidConfig)
	}
	if c.Advertise {
		if err := discovery.ValidateInstanceName(c.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.Subscription.QueueSize < 0 || c.Subscription.MaxChannels < 0 {
		return fmt.Errorf("%w: negative subscription limits", ErrInvalidConfig)
	}
	if c.Subscription.ChannelLifetime < 0 || c.Subscription.WaitTimeout < 0 {
		return fmt.Errorf("%w: negative subscription timeouts", ErrInvalidConfig)
	}
	for name, raw := range c.Mounts {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: mount %s: bad URL %q", ErrInvalidConfig, name, raw)
		}
	}
	return nil
}

func (c *ServerConfig) subscriptionConfig() subscription.Config {
	return subscription.Config{
		QueueSize:       c.Subscription.QueueSize,
		ChannelLifetime: c.Subscription.ChannelLifetime,
		WaitTimeout:     c.Subscription.WaitTimeout,
		MaxChannels:     c.Subscription.MaxChannels,
		Logger:          c.Logger,
	}
}
