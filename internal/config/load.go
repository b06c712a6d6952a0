package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.baseDir = filepath.Dir(absPath)

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills the empirically chosen knobs left unset.
func (c *Config) applyDefaults() {
	if c.Signer.Timeout <= 0 {
		c.Signer.Timeout = 10 * time.Second
	}
	if c.WebClient.Timeout <= 0 {
		c.WebClient.Timeout = 15 * time.Second
	}
	if c.WebClient.MaxBodyBytes <= 0 {
		c.WebClient.MaxBodyBytes = 4 << 20
	}
	if c.WebClient.MinFragmentBytes <= 0 {
		c.WebClient.MinFragmentBytes = 200
	}
	if c.WebClient.NoiseThreshold <= 0 {
		c.WebClient.NoiseThreshold = 5
	}
	if c.WebClient.CountDelta <= 0 {
		c.WebClient.CountDelta = 5
	}
	if c.Detector.LengthDeltaThreshold <= 0 {
		c.Detector.LengthDeltaThreshold = 10
	}
	if c.Trend.WindowSize <= 0 {
		c.Trend.WindowSize = 10
	}
	if c.Risk.CriticalSuccessRate <= 0 {
		c.Risk.CriticalSuccessRate = 0.5
	}
	if c.Risk.HighSuccessRate <= 0 {
		c.Risk.HighSuccessRate = 0.8
	}
	if c.Risk.SlowResponseMS <= 0 {
		c.Risk.SlowResponseMS = 2000
	}
	if c.Monitor.Interval <= 0 {
		c.Monitor.Interval = 30 * time.Minute
	}
	if c.Store.Path == "" {
		c.Store.Path = "signwatch.db"
	}
}

func (c *Config) resolvePath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := c.baseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, p)
}
