package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zhuoqizheng/rovio/internal/adapters/opcua"
	"github.com/zhuoqizheng/rovio/internal/health"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

type Config struct {
	Monitor   health.Config   `yaml:"monitor"`
	Policy    ports.Policy    `yaml:"policy"`
	OPCUA     opcua.Config    `yaml:"opcua"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	WAL       WALConfig       `yaml:"wal"`
}

type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{Monitor: health.DefaultConfig()}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 5 * time.Millisecond
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "block"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Timescale.Table == "" {
		c.Timescale.Table = "guard_decisions"
	}
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}

	c.OPCUA.ApplyDefaults()
}

func (c *Config) validate() error {
	// The monitor itself never validates thresholds; malformed values are
	// the configuration source's fault and get rejected here.
	if err := validateMonitor(&c.Monitor); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}
	if err := c.OPCUA.Validate(); err != nil {
		return fmt.Errorf("opcua config: %w", err)
	}
	if c.Timescale.ConnString == "" {
		return fmt.Errorf("timescale.conn_string is required")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	return nil
}

func validateMonitor(m *health.Config) error {
	if m.VelocityToConsiderStatic < 0 {
		return fmt.Errorf("velocity_to_consider_static must be >= 0")
	}
	if m.MaxSubsequentUnhealthyUpdates < 0 {
		return fmt.Errorf("max_subsequent_unhealthy_updates must be >= 0")
	}
	if m.HealthyFeaturePixelCovArea < 0 {
		return fmt.Errorf("healthy_feature_pixel_cov_area must be >= 0")
	}
	if m.HealthyFeaturePixelCovAreaIncrement < 0 {
		return fmt.Errorf("healthy_feature_pixel_cov_area_increment must be >= 0")
	}
	if m.UnhealthyFeaturePixelCovArea < 0 {
		return fmt.Errorf("unhealthy_feature_pixel_cov_area must be >= 0")
	}
	if m.UnhealthyVelocity < 0 {
		return fmt.Errorf("unhealthy_velocity must be >= 0")
	}
	return nil
}
