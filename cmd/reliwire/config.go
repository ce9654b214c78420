package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/reliwire-dev/reliwire/pkg/processor"
)

// serveConfig is the resolved configuration for the serve command.
type serveConfig struct {
	Listen       string
	StrictDecode bool
	Heartbeat    processor.HeartbeatConfig
}

func defaultServeConfig() serveConfig {
	return serveConfig{
		Listen:    ":8080",
		Heartbeat: processor.DefaultHeartbeatConfig(),
	}
}

// fileConfig is the TOML shape of the optional config file. Durations
// are Go duration strings ("2s", "1500ms").
type fileConfig struct {
	Listen                      string  `toml:"listen"`
	StrictDecode                bool    `toml:"strict_decode"`
	HeartbeatMinInterval        string  `toml:"heartbeat_min_interval"`
	HeartbeatIntervalMultiplier float64 `toml:"heartbeat_interval_multiplier"`
	HeartbeatMinTimeout         string  `toml:"heartbeat_min_timeout"`
	HeartbeatTimeoutMultiplier  float64 `toml:"heartbeat_timeout_multiplier"`
}

func loadServeConfig(path string) (serveConfig, error) {
	cfg := defaultServeConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serveConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("listen") {
		listen := strings.TrimSpace(raw.Listen)
		if listen != "" {
			cfg.Listen = listen
		}
	}

	if meta.IsDefined("strict_decode") {
		cfg.StrictDecode = raw.StrictDecode
	}

	if meta.IsDefined("heartbeat_min_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatMinInterval))
		if err != nil {
			return serveConfig{}, fmt.Errorf("parse heartbeat_min_interval: %w", err)
		}
		cfg.Heartbeat.MinInterval = d
	}

	if meta.IsDefined("heartbeat_interval_multiplier") {
		if raw.HeartbeatIntervalMultiplier <= 0 {
			return serveConfig{}, fmt.Errorf("heartbeat_interval_multiplier must be positive")
		}
		cfg.Heartbeat.IntervalMultiplier = raw.HeartbeatIntervalMultiplier
	}

	if meta.IsDefined("heartbeat_min_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatMinTimeout))
		if err != nil {
			return serveConfig{}, fmt.Errorf("parse heartbeat_min_timeout: %w", err)
		}
		cfg.Heartbeat.MinTimeout = d
	}

	if meta.IsDefined("heartbeat_timeout_multiplier") {
		if raw.HeartbeatTimeoutMultiplier <= 0 {
			return serveConfig{}, fmt.Errorf("heartbeat_timeout_multiplier must be positive")
		}
		cfg.Heartbeat.TimeoutMultiplier = raw.HeartbeatTimeoutMultiplier
	}

	return cfg, nil
}
