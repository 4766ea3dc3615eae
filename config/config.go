package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/opd-ai/airtunes/limits"
	"github.com/opd-ai/airtunes/rtsp"
	"gopkg.in/yaml.v3"
)

// Config is the receiver configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Framing FramingConfig `yaml:"framing"`
	Pairing PairingConfig `yaml:"pairing"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the control-channel listener and poller.
type ServerConfig struct {
	ListenAddress  string `yaml:"listen_address"`
	ServerID       string `yaml:"server_id"`
	DeviceName     string `yaml:"device_name"`
	Model          string `yaml:"model"`
	MaxConnections int    `yaml:"max_connections"`
	PollIntervalMS int    `yaml:"poll_interval_ms"` // idle sleep between passes
	RecvPollMS     int    `yaml:"recv_poll_ms"`     // read deadline for polled sockets
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	RawSockets     bool   `yaml:"raw_sockets"`
}

// FramingConfig controls the encrypted framing layer.
type FramingConfig struct {
	MaxBlockSize int `yaml:"max_block_size"`
}

// PairingConfig holds the accessory identity.
type PairingConfig struct {
	IdentityKey string `yaml:"identity_key"` // hex X25519 private key
}

// LoggingConfig selects logrus level and formatter.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:  ":7000",
			ServerID:       rtsp.DefaultServerID,
			DeviceName:     "airtunes",
			Model:          "AudioAccessory1,1",
			MaxConnections: 8,
			PollIntervalMS: 5,
			RecvPollMS:     1,
			WriteTimeoutMS: 2000,
			RawSockets:     true,
		},
		Framing: FramingConfig{
			MaxBlockSize: limits.MaxBlockSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Fields
// absent from data keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Framing.Validate(); err != nil {
		return fmt.Errorf("framing config: %w", err)
	}
	if err := c.Pairing.Validate(); err != nil {
		return fmt.Errorf("pairing config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate checks the server section.
func (s *ServerConfig) Validate() error {
	if s.ListenAddress == "" {
		return errors.New("listen_address cannot be empty")
	}
	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		return fmt.Errorf("listen_address %q: %w", s.ListenAddress, err)
	}
	if s.ServerID == "" {
		return errors.New("server_id cannot be empty")
	}
	if s.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1, got %d", s.MaxConnections)
	}
	if s.PollIntervalMS < 1 || s.PollIntervalMS > 1000 {
		return fmt.Errorf("poll_interval_ms must be between 1 and 1000, got %d", s.PollIntervalMS)
	}
	if s.RecvPollMS < 1 || s.RecvPollMS > 1000 {
		return fmt.Errorf("recv_poll_ms must be between 1 and 1000, got %d", s.RecvPollMS)
	}
	if s.WriteTimeoutMS < 1 {
		return fmt.Errorf("write_timeout_ms must be positive, got %d", s.WriteTimeoutMS)
	}
	return nil
}

// PollInterval is the idle sleep between poll passes.
func (s *ServerConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// RecvPoll is the read deadline used by deadline-polled sockets.
func (s *ServerConfig) RecvPoll() time.Duration {
	return time.Duration(s.RecvPollMS) * time.Millisecond
}

// WriteTimeout bounds a single blocking send.
func (s *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// Validate checks the framing section.
func (f *FramingConfig) Validate() error {
	if err := limits.ValidateMaxBlock(f.MaxBlockSize); err != nil {
		return fmt.Errorf("max_block_size: %w", err)
	}
	return nil
}

// Validate checks the pairing section.
func (p *PairingConfig) Validate() error {
	if p.IdentityKey == "" {
		return nil
	}
	if len(p.IdentityKey) != 64 {
		return fmt.Errorf("identity_key must be 64 hex characters, got %d", len(p.IdentityKey))
	}
	for _, c := range p.IdentityKey {
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return fmt.Errorf("identity_key contains non-hex character %q", c)
		}
	}
	return nil
}

// Validate checks the logging section.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [trace, debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}
	return nil
}
