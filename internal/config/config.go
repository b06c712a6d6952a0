package config

import "time"

type Config struct {
	ConfigVersion int             `yaml:"configVersion"`
	Signer        SignerConfig    `yaml:"signer"`
	Baseline      BaselineConfig  `yaml:"baseline"`
	WebClient     WebClientConfig `yaml:"webClient"`
	Detector      DetectorConfig  `yaml:"detector"`
	Trend         TrendConfig     `yaml:"trend"`
	Risk          RiskConfig      `yaml:"risk"`
	Alerts        []AlertRule     `yaml:"alerts"`
	Store         StoreConfig     `yaml:"store"`
	Monitor       MonitorConfig   `yaml:"monitor"`
	Metrics       MetricsConfig   `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type SignerConfig struct {
	Endpoint        string        `yaml:"endpoint"`
	VersionEndpoint string        `yaml:"versionEndpoint"`
	Timeout         time.Duration `yaml:"timeout"`
	RPS             float64       `yaml:"rps"`
	Burst           int           `yaml:"burst"`
}

type BaselineConfig struct {
	TestURLs []string `yaml:"testUrls"`
}

type WebClientConfig struct {
	URLs               []string            `yaml:"urls"`
	Timeout            time.Duration       `yaml:"timeout"`
	MaxBodyBytes       int64               `yaml:"maxBodyBytes"`
	MinFragmentBytes   int                 `yaml:"minFragmentBytes"`
	NoiseThreshold     int                 `yaml:"noiseThreshold"`
	CountDelta         int                 `yaml:"countDelta"`
	Categories         map[string][]string `yaml:"categories"`
	SuspiciousKeywords []string            `yaml:"suspiciousKeywords"`
	RPS                float64             `yaml:"rps"`
	Burst              int                 `yaml:"burst"`
}

type DetectorConfig struct {
	LengthDeltaThreshold float64 `yaml:"lengthDeltaThreshold"`
}

type TrendConfig struct {
	WindowSize int `yaml:"windowSize"`
}

type RiskConfig struct {
	CriticalSuccessRate float64 `yaml:"criticalSuccessRate"`
	HighSuccessRate     float64 `yaml:"highSuccessRate"`
	SlowResponseMS      float64 `yaml:"slowResponseMs"`
}

type AlertRule struct {
	ID        string        `yaml:"id"`
	Type      string        `yaml:"type"`
	Threshold float64       `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
	Cooldown  time.Duration `yaml:"cooldown"`
	Severity  string        `yaml:"severity"`
	Enabled   *bool         `yaml:"enabled"`
	URLFilter string        `yaml:"urlFilter"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	CycleLog string        `yaml:"cycleLog"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}

// RuleEnabled treats an unset enabled flag as true.
func (r AlertRule) RuleEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}
