package roviohealth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zhuoqizheng/rovio/internal/adapters/observability"
	"github.com/zhuoqizheng/rovio/internal/adapters/queue"
	"github.com/zhuoqizheng/rovio/internal/adapters/wal"
	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/health"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// ErrQueueFull indicates the in-memory queue rejected the decision according to policy.
var ErrQueueFull = errors.New("roviohealth: queue full")

// ErrWALFull indicates the WAL is at capacity and OnWALFull != "block".
var ErrWALFull = errors.New("roviohealth: wal full")

// Observation mirrors the internal domain.Observation but is safe for
// external callers. FeatureCovAreas holds one pixel-covariance ellipse area
// per tracked landmark.
type Observation struct {
	Seq             uint64
	Timestamp       time.Time
	FeatureCovAreas []float64
	Velocity        r3.Vec
	Position        r3.Vec
	Orientation     quat.Number
	SourceNodeID    string
}

// Decision mirrors the internal domain.Decision for external callers.
type Decision struct {
	Seq             uint64
	Timestamp       time.Time
	Reset           bool
	QualityMedian   float64
	Speed           float64
	UnhealthyStreak int
	SourceNodeID    string
}

// DecisionBatchSink is invoked with ordered decision batches dequeued from the pipeline.
type DecisionBatchSink func([]Decision) error

// ExternalGuardConfig configures the WAL-backed guard used by embedding callers.
type ExternalGuardConfig struct {
	Monitor MonitorConfig
	Policy  Policy
	WAL     WALConfig
}

// applyDefaults fills in sane thresholds so callers only override what they need.
func (c *ExternalGuardConfig) applyDefaults() {
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
	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/rovio-guard-wal"
	}
}

func (c *ExternalGuardConfig) validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is required")
	}
	if c.Policy.MaxQueueLen <= 0 {
		return fmt.Errorf("policy.max_queue_len must be > 0")
	}
	if c.Policy.MaxBatchSize <= 0 {
		return fmt.Errorf("policy.max_batch_size must be > 0")
	}
	if c.Monitor.VelocityToConsiderStatic < 0 {
		return fmt.Errorf("monitor.velocity_to_consider_static must be >= 0")
	}
	if c.Monitor.MaxSubsequentUnhealthyUpdates < 0 {
		return fmt.Errorf("monitor.max_subsequent_unhealthy_updates must be >= 0")
	}
	return nil
}

// ExternalGuard embeds the monitor + WAL → queue → journal pipeline inside a
// caller's own estimator loop. Evaluate is meant to be called once per filter
// update; the returned bool says whether the estimator should reset now.
type ExternalGuard struct {
	policy  ports.Policy
	monitor *health.Monitor
	wal     ports.WAL
	queue   ports.DecisionQueue
	obs     ports.Observability
	sink    DecisionBatchSink

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewExternalGuard wires the monitor, a file WAL, and a bounded queue around
// a decision callback so callers can keep their own estimator loop while
// reusing the durability and backpressure policies.
func NewExternalGuard(cfg *ExternalGuardConfig, sink DecisionBatchSink) (*ExternalGuard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink callback is required")
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	walAdapter, err := wal.NewFileWAL(cfg.WAL.Dir)
	if err != nil {
		return nil, err
	}
	q := queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	obs := observability.NewPromObs()

	if err := replayWALIntoQueue(walAdapter, q, cfg.Policy, obs); err != nil {
		return nil, err
	}

	g := &ExternalGuard{
		policy:  cfg.Policy,
		monitor: health.NewMonitor(cfg.Monitor, obs),
		wal:     walAdapter,
		queue:   q,
		obs:     obs,
		sink:    sink,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go g.runJournal()
	return g, nil
}

// Evaluate runs one guard cycle: it scores the observation, journals the
// decision through the WAL and queue, and reports whether the estimator
// should reset. The reset signal is returned even when journaling fails so
// safety never waits on storage.
func (g *ExternalGuard) Evaluate(obs Observation) (bool, error) {
	d := g.monitor.Observe(obs.toDomain())
	reset := d.Reset && g.monitor.Enabled()

	if !waitForLocalWALCapacity(g.wal, g.policy, g.obs) {
		return reset, ErrWALFull
	}

	id, err := g.wal.Append(d)
	if err != nil {
		return reset, err
	}

	if !enqueueWithLocalPolicy(g.queue, id, d, g.policy, g.obs) {
		return reset, ErrQueueFull
	}
	return reset, nil
}

// Enabled reports whether reset decisions are acted on.
func (g *ExternalGuard) Enabled() bool { return g.monitor.Enabled() }

// FailsafePosition returns the last safe position cached by the monitor.
func (g *ExternalGuard) FailsafePosition() r3.Vec { return g.monitor.FailsafePosition() }

// FailsafeOrientation returns the last safe orientation cached by the monitor.
func (g *ExternalGuard) FailsafeOrientation() quat.Number { return g.monitor.FailsafeOrientation() }

// Close waits for the journal loop to exit, respecting the provided context.
func (g *ExternalGuard) Close(ctx context.Context) error {
	g.stopOnce.Do(func() {
		close(g.stopCh)
	})

	select {
	case <-g.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *ExternalGuard) runJournal() {
	defer close(g.doneCh)
	idle := g.policy.IdleSleep
	if idle <= 0 {
		idle = 5 * time.Millisecond
	}

	for {
		select {
		case <-g.stopCh:
			return
		default:
		}

		batch := g.queue.DequeueBatch(g.policy.MaxBatchSize)
		if len(batch) == 0 {
			time.Sleep(idle)
			continue
		}

		var (
			converted = make([]Decision, 0, len(batch))
			maxID     ports.WALEntryID
		)
		for _, item := range batch {
			converted = append(converted, decisionFromDomain(item.Decision))
			if item.ID > maxID {
				maxID = item.ID
			}
		}

		if err := g.sink(converted); err != nil {
			g.obs.LogError("external_journal_failed", err)
			time.Sleep(idle)
			continue
		}

		g.obs.IncCounter("rovio_guard_decisions_journaled_total", float64(len(converted)))
		if err := g.wal.Commit(maxID); err != nil {
			g.obs.LogError("wal_commit_failed", err)
		}
	}
}

func (o Observation) toDomain() *domain.Observation {
	return &domain.Observation{
		Seq:             o.Seq,
		Timestamp:       o.Timestamp,
		FeatureCovAreas: copyAreas(o.FeatureCovAreas),
		Velocity:        o.Velocity,
		Position:        o.Position,
		Orientation:     o.Orientation,
		SourceNodeID:    o.SourceNodeID,
	}
}

func decisionFromDomain(d *domain.Decision) Decision {
	return Decision{
		Seq:             d.Seq,
		Timestamp:       d.Timestamp,
		Reset:           d.Reset,
		QualityMedian:   d.QualityMedian,
		Speed:           d.Speed,
		UnhealthyStreak: d.UnhealthyStreak,
		SourceNodeID:    d.SourceNodeID,
	}
}

func copyAreas(src []float64) []float64 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}

func waitForLocalWALCapacity(wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithLocalPolicy(q ports.DecisionQueue, id ports.WALEntryID, d *domain.Decision, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(id, d); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
