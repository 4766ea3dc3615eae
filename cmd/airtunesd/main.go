// Package main runs the airtunes control-channel daemon.
//
// It loads the YAML configuration, configures logging, loads or generates
// the accessory identity and serves RTSP control connections until it
// receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/airtunes/config"
	"github.com/opd-ai/airtunes/pairing"
	"github.com/opd-ai/airtunes/server"
	"github.com/sirupsen/logrus"
)

// CLIConfig holds command-line overrides.
type CLIConfig struct {
	configPath string
	listen     string
	logLevel   string
	logFormat  string
	plainPoll  bool
	showKey    bool
}

func parseCLIFlags() *CLIConfig {
	cli := &CLIConfig{}
	flag.StringVar(&cli.configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&cli.listen, "listen", "", "Listen address, overrides server.listen_address")
	flag.StringVar(&cli.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flag.StringVar(&cli.logFormat, "log-format", "", "Log format (text, json)")
	flag.BoolVar(&cli.plainPoll, "no-raw-sockets", false, "Poll sockets with read deadlines instead of raw descriptors")
	flag.BoolVar(&cli.showKey, "print-public-key", false, "Print the accessory public key and exit")
	flag.Parse()
	return cli
}

func loadConfig(cli *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cli.configPath != "" {
		loaded, err := config.Load(cli.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cli.listen != "" {
		cfg.Server.ListenAddress = cli.listen
	}
	if cli.logLevel != "" {
		cfg.Logging.Level = cli.logLevel
	}
	if cli.logFormat != "" {
		cfg.Logging.Format = cli.logFormat
	}
	if cli.plainPoll {
		cfg.Server.RawSockets = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if err := cfg.Logging.Apply(); err != nil {
		return err
	}

	id, err := pairing.LoadIdentity(cfg.Pairing.IdentityKey)
	if err != nil {
		return err
	}
	defer id.Wipe()

	if cli.showKey {
		fmt.Println(id.PublicHex())
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":   "run",
		"device":     cfg.Server.DeviceName,
		"model":      cfg.Server.Model,
		"server_id":  cfg.Server.ServerID,
		"public_key": id.PublicHex(),
		"raw":        cfg.Server.RawSockets,
		"max_block":  cfg.Framing.MaxBlockSize,
	}).Info("Starting airtunes control channel")

	routes := server.DefaultRoutes(server.DeviceInfo{
		Name:  cfg.Server.DeviceName,
		Model: cfg.Server.Model,
	}, id)
	return server.New(cfg, routes).ListenAndServe(ctx)
}

func main() {
	cli := parseCLIFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cli); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"error":    err.Error(),
		}).Error("airtunesd failed")
		os.Exit(1)
	}
}
