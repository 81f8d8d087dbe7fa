package rovio

import (
	base "github.com/zhuoqizheng/rovio/pkg/roviohealth"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull            = base.ErrQueueFull
	ErrWALFull              = base.ErrWALFull
	ErrChannelJournalClosed = base.ErrChannelJournalClosed
)

// Type aliases so consumers can import github.com/zhuoqizheng/rovio directly.
type (
	Config              = base.Config
	MonitorConfig       = base.MonitorConfig
	Policy              = base.Policy
	OPCUAConfig         = base.OPCUAConfig
	OPCUANodeSet        = base.OPCUANodeSet
	TimescaleConfig     = base.TimescaleConfig
	MetricsConfig       = base.MetricsConfig
	WALConfig           = base.WALConfig
	Flow                = base.Flow
	FlowOption          = base.FlowOption
	StreamInOption      = base.StreamInOption
	StreamOutOption     = base.StreamOutOption
	GuardRuntime        = base.GuardRuntime
	GuardRuntimeOption  = base.GuardRuntimeOption
	Observation         = base.Observation
	Decision            = base.Decision
	DecisionBatchSink   = base.DecisionBatchSink
	EstimatorSource     = base.EstimatorSource
	EstimatorResetter   = base.EstimatorResetter
	DecisionJournal     = base.DecisionJournal
	DecisionQueue       = base.DecisionQueue
	WAL                 = base.WAL
	Observability       = base.Observability
	QueuedDecision      = base.QueuedDecision
	WALEntryID          = base.WALEntryID
	WALStats            = base.WALStats
	ExternalGuard       = base.ExternalGuard
	ExternalGuardConfig = base.ExternalGuardConfig
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultMonitorConfig() MonitorConfig {
	return base.DefaultMonitorConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...GuardRuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src EstimatorSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInQueue(q DecisionQueue) StreamInOption {
	return base.StreamInQueue(q)
}

func StreamInWAL(w WAL) StreamInOption {
	return base.StreamInWAL(w)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutJournal(j DecisionJournal) StreamOutOption {
	return base.StreamOutJournal(j)
}

func StreamOutResetter(r EstimatorResetter) StreamOutOption {
	return base.StreamOutResetter(r)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn DecisionBatchSink) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Guard runtime and options.
func NewGuardRuntime(cfg *Config, opts ...GuardRuntimeOption) (*GuardRuntime, error) {
	return base.NewGuardRuntime(cfg, opts...)
}

func WithSource(src EstimatorSource) GuardRuntimeOption {
	return base.WithSource(src)
}

func WithResetter(r EstimatorResetter) GuardRuntimeOption {
	return base.WithResetter(r)
}

func WithJournal(j DecisionJournal) GuardRuntimeOption {
	return base.WithJournal(j)
}

func WithWAL(w WAL) GuardRuntimeOption {
	return base.WithWAL(w)
}

func WithDecisionQueue(q DecisionQueue) GuardRuntimeOption {
	return base.WithDecisionQueue(q)
}

func WithObservability(obs Observability) GuardRuntimeOption {
	return base.WithObservability(obs)
}

// Journal adapters.
func NewCallbackJournal(name string, fn DecisionBatchSink) DecisionJournal {
	return base.NewCallbackJournal(name, fn)
}

func NewChannelJournal(name string, buffer int) (DecisionJournal, <-chan []Decision, func()) {
	return base.NewChannelJournal(name, buffer)
}

// External guard for embedding inside an estimator loop.
func NewExternalGuard(cfg *ExternalGuardConfig, sink DecisionBatchSink) (*ExternalGuard, error) {
	return base.NewExternalGuard(cfg, sink)
}
