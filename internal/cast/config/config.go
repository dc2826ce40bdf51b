// Package config loads castctl's command-line configuration, following
// the flag+environment-variable pattern of
// internal/signaling/config.Load(): flags first, environment variables
// override, defaults fill in everything else. The castgo library
// itself never calls flag.Parse — only the castctl binary does
// (SPEC_FULL.md's ambient-stack configuration note).
package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"time"
)

// Config holds castctl's connection and behavior settings.
type Config struct {
	Address        string // host:port of the target Cast receiver
	LogLevel       string
	AppID          string
	AutoReconnect  bool
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Load parses command-line flags, applies environment variable
// overrides, and returns the resulting Config.
func Load() *Config {
	cfg := &Config{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 5 * time.Second,
	}

	flag.StringVar(&cfg.Address, "address", "", "Cast receiver address, host:port (default port 8009)")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.AppID, "app", "", "Application id to launch on connect")
	flag.BoolVar(&cfg.AutoReconnect, "auto-reconnect", false, "Transparently reconnect once on a closed channel")
	flag.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "TLS connect + auth handshake timeout")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Per-request response timeout")

	flag.Parse()

	if addr := os.Getenv("CASTCTL_ADDRESS"); addr != "" {
		cfg.Address = addr
	}
	if level := os.Getenv("CASTCTL_LOGLEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if app := os.Getenv("CASTCTL_APP"); app != "" {
		cfg.AppID = app
	}
	if reconnect := os.Getenv("CASTCTL_AUTO_RECONNECT"); reconnect != "" {
		if b, err := strconv.ParseBool(reconnect); err == nil {
			cfg.AutoReconnect = b
		}
	}
	if cfg.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.Address); err != nil {
			cfg.Address = net.JoinHostPort(cfg.Address, "8009")
		}
	}

	return cfg
}
