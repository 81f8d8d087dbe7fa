package roviohealth

import (
	"github.com/zhuoqizheng/rovio/internal/adapters/opcua"
	"github.com/zhuoqizheng/rovio/internal/app/config"
	"github.com/zhuoqizheng/rovio/internal/health"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// MonitorConfig holds the health thresholds.
	MonitorConfig = health.Config
	// Policy controls WAL/queue thresholds.
	Policy = ports.Policy
	// OPCUAConfig holds estimator bridge connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeSet maps estimator outputs to node IDs.
	OPCUANodeSet = opcua.NodeSet
	// TimescaleConfig configures the decision journal.
	TimescaleConfig = config.TimescaleConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
)

// DefaultMonitorConfig returns the reference guard thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return health.DefaultConfig()
}

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
