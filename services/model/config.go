// Copyright (C) 2026 Meridian IDE (engineering@meridian-ide.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package model

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MeridianIDE/MeridianCore/services/model/clock"
)

// ===== CONFIGURATION =====

// ServerConfig configures a ModelServer. Zero values use defaults.
type ServerConfig struct {
	// SyncTimeout caps synchronous operation execution.
	// Default: 30s.
	SyncTimeout time.Duration `yaml:"syncTimeout"`

	// JobRetention is how long terminal jobs stay queryable.
	// Default: 1h.
	JobRetention time.Duration `yaml:"jobRetention"`

	// JobCleanupInterval is the sweep cadence for expired jobs.
	// Default: 5m.
	JobCleanupInterval time.Duration `yaml:"jobCleanupInterval"`

	// DefaultDebounce applies to subscriptions without an explicit window.
	// Default: 100ms.
	DefaultDebounce time.Duration `yaml:"defaultDebounce"`

	// MaxDebounce caps requested subscription windows.
	// Default: 500ms.
	MaxDebounce time.Duration `yaml:"maxDebounce"`

	// MaxDepth caps model tree conversion depth.
	// Default: 100.
	MaxDepth int `yaml:"maxDepth"`

	// AllowedSchemes restricts subscribable document URIs.
	// Default: ["file", "inmemory", "untitled"].
	AllowedSchemes []string `yaml:"allowedSchemes"`

	// WatchRoot, when set, enables the filesystem watcher over this
	// directory so on-disk saves raise document events.
	WatchRoot string `yaml:"watchRoot"`

	// Clock is the time source for the job manager and the subscription
	// service. Default: clock.System(). Not read from YAML.
	Clock clock.Clock `yaml:"-"`
}

// ApplyDefaults fills unset fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = 30 * time.Second
	}
	if c.JobRetention <= 0 {
		c.JobRetention = time.Hour
	}
	if c.JobCleanupInterval <= 0 {
		c.JobCleanupInterval = 5 * time.Minute
	}
	if c.DefaultDebounce <= 0 {
		c.DefaultDebounce = 100 * time.Millisecond
	}
	if c.MaxDebounce <= 0 {
		c.MaxDebounce = 500 * time.Millisecond
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 100
	}
	if len(c.AllowedSchemes) == 0 {
		c.AllowedSchemes = []string{"file", "inmemory", "untitled"}
	}
	if c.Clock == nil {
		c.Clock = clock.System()
	}
}

// Validate rejects configurations that defaults cannot repair.
func (c *ServerConfig) Validate() error {
	if c.MaxDebounce < c.DefaultDebounce {
		return fmt.Errorf("maxDebounce %v is below defaultDebounce %v", c.MaxDebounce, c.DefaultDebounce)
	}
	if c.WatchRoot != "" {
		info, err := os.Stat(c.WatchRoot)
		if err != nil {
			return fmt.Errorf("watchRoot: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("watchRoot %q is not a directory", c.WatchRoot)
		}
	}
	return nil
}

// LoadConfig reads a YAML server configuration from path, applies defaults,
// and validates it. A missing path yields the default configuration.
func LoadConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
