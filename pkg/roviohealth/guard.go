package roviohealth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zhuoqizheng/rovio/internal/adapters/journal"
	"github.com/zhuoqizheng/rovio/internal/adapters/observability"
	"github.com/zhuoqizheng/rovio/internal/adapters/opcua"
	"github.com/zhuoqizheng/rovio/internal/adapters/queue"
	logreset "github.com/zhuoqizheng/rovio/internal/adapters/resetter"
	"github.com/zhuoqizheng/rovio/internal/adapters/wal"
	"github.com/zhuoqizheng/rovio/internal/app/pipeline"
	"github.com/zhuoqizheng/rovio/internal/health"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// GuardRuntimeOption customizes the dependencies used by GuardRuntime.
type GuardRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        EstimatorSource
	resetter      EstimatorResetter
	journal       DecisionJournal
	wal           WAL
	queue         DecisionQueue
	observability Observability
}

// WithSource injects a custom observation source (in-process feed, replayed
// logs, simulators, etc.).
func WithSource(src EstimatorSource) GuardRuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithResetter injects a custom reset channel back to the estimator.
func WithResetter(r EstimatorResetter) GuardRuntimeOption {
	return func(o *runtimeOverrides) {
		o.resetter = r
	}
}

// WithJournal injects a custom journal so decisions can be sent to any
// database or API.
func WithJournal(j DecisionJournal) GuardRuntimeOption {
	return func(o *runtimeOverrides) {
		o.journal = j
	}
}

// WithWAL lets callers bring their own WAL implementation or reuse an
// existing instance.
func WithWAL(w WAL) GuardRuntimeOption {
	return func(o *runtimeOverrides) {
		o.wal = w
	}
}

// WithDecisionQueue injects a custom queue implementation.
func WithDecisionQueue(q DecisionQueue) GuardRuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend (OpenTelemetry,
// structured logs, etc.).
func WithObservability(obs Observability) GuardRuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// GuardRuntime wires up the source → monitor → WAL → queue → journal
// pipeline and exposes simple lifecycle hooks for embedding the guard inside
// any Go service.
type GuardRuntime struct {
	cfg           *Config
	policy        ports.Policy
	obs           ports.Observability
	monitor       *health.Monitor
	wal           ports.WAL
	queue         ports.DecisionQueue
	source        ports.EstimatorSource
	resetter      ports.EstimatorResetter
	journal       ports.DecisionJournal
	db            *sql.DB
	metricsSrv    *http.Server
	gaugeStopCh   chan struct{}
	journalDoneCh chan struct{}
}

// NewGuardRuntime bootstraps the default adapters (OPC UA estimator bridge
// as both source and resetter, file WAL, in-memory queue, Timescale journal,
// Prometheus observability). Callers can use GuardRuntimeOption values to
// override any dependency.
func NewGuardRuntime(cfg *Config, opts ...GuardRuntimeOption) (*GuardRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	var (
		walAdapter ports.WAL
		err        error
	)
	if overrides.wal != nil {
		walAdapter = overrides.wal
	} else {
		walAdapter, err = wal.NewFileWAL(cfg.WAL.Dir)
		if err != nil {
			return nil, err
		}
	}
	if walAdapter == nil {
		return nil, fmt.Errorf("wal adapter is nil")
	}

	q := overrides.queue
	if q == nil {
		q = queue.NewMemQueue(cfg.Policy.MaxQueueLen)
	}
	if q == nil {
		return nil, fmt.Errorf("decision queue is nil")
	}

	if err := replayWALIntoQueue(walAdapter, q, cfg.Policy, obs); err != nil {
		return nil, err
	}

	src := overrides.source
	if src == nil {
		src, err = opcua.NewBridge(cfg.OPCUA)
		if err != nil {
			return nil, err
		}
	}
	if src == nil {
		return nil, fmt.Errorf("estimator source is nil")
	}

	rst := overrides.resetter
	if rst == nil {
		// The OPC UA bridge doubles as the reset channel; anything else
		// falls back to observability-only signaling.
		if bridge, ok := src.(*opcua.Bridge); ok {
			rst = bridge
		} else {
			rst = logreset.NewLogResetter(obs)
		}
	}

	var (
		db  *sql.DB
		jnl ports.DecisionJournal
	)
	if overrides.journal != nil {
		jnl = overrides.journal
	} else {
		db, err = sql.Open("postgres", cfg.Timescale.ConnString)
		if err != nil {
			return nil, err
		}
		jnl = journal.NewTimescaleJournal(db, cfg.Timescale.Table)
	}
	if jnl == nil {
		return nil, fmt.Errorf("decision journal is nil")
	}

	return &GuardRuntime{
		cfg:      cfg,
		policy:   cfg.Policy,
		obs:      obs,
		monitor:  health.NewMonitor(cfg.Monitor, obs),
		wal:      walAdapter,
		queue:    q,
		source:   src,
		resetter: rst,
		journal:  jnl,
		db:       db,
	}, nil
}

// Start begins the guard + journal pipelines and launches the observability
// stack. It returns immediately; call Run to block on a context instead.
func (g *GuardRuntime) Start() error {
	if g == nil {
		return fmt.Errorf("guard runtime is nil")
	}
	if err := pipeline.RunGuardPipeline(g.source, g.monitor, g.resetter, g.wal, g.queue, g.policy, g.obs); err != nil {
		return err
	}

	g.journalDoneCh = make(chan struct{})
	go func() {
		pipeline.RunJournalPipeline(g.wal, g.queue, g.journal, g.policy, g.obs)
		close(g.journalDoneCh)
	}()

	g.startMetrics()
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (g *GuardRuntime) Run(ctx context.Context) error {
	if err := g.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(shutdownCtx)
}

// Shutdown stops the source, metrics server, and DB connection.
func (g *GuardRuntime) Shutdown(ctx context.Context) error {
	var errs []error

	if g.gaugeStopCh != nil {
		close(g.gaugeStopCh)
	}

	if g.metricsSrv != nil {
		if err := g.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if g.source != nil {
		if err := g.source.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if g.db != nil {
		if err := g.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Enabled reports whether the guard acts on reset decisions.
func (g *GuardRuntime) Enabled() bool { return g.monitor.Enabled() }

// FailsafePosition returns the last safe position cached by the monitor.
func (g *GuardRuntime) FailsafePosition() r3.Vec { return g.monitor.FailsafePosition() }

// FailsafeOrientation returns the last safe orientation cached by the monitor.
func (g *GuardRuntime) FailsafeOrientation() quat.Number { return g.monitor.FailsafeOrientation() }

func (g *GuardRuntime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	g.metricsSrv = &http.Server{
		Addr:    g.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := g.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	g.gaugeStopCh = make(chan struct{})
	go g.recordResourceGauges(g.gaugeStopCh, time.Second)
}

func (g *GuardRuntime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := g.wal.Stats()
			g.obs.SetGauge("rovio_guard_wal_size_bytes", float64(stats.SizeBytes))
			g.obs.SetGauge("rovio_guard_queue_length", float64(g.queue.Len()))
		}
	}
}

func replayWALIntoQueue(walAdapter ports.WAL, q ports.DecisionQueue, pol ports.Policy, obs ports.Observability) error {
	stats := walAdapter.Stats()
	if stats.LatestAppended == 0 {
		return nil
	}
	start := stats.OldestUncommitted
	if start == 0 || start > stats.LatestAppended {
		return nil
	}

	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	var replayed int
	err := walAdapter.Iterate(start, func(id ports.WALEntryID, d *PipelineDecision) error {
		for {
			if q.Enqueue(id, d) {
				replayed++
				return nil
			}
			switch pol.OnQueueFull {
			case "drop", "reject":
				return fmt.Errorf("queue full during WAL replay")
			default:
				time.Sleep(sleep)
			}
		}
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		obs.LogInfo("wal_replay_complete",
			ports.Field{Key: "decisions", Value: replayed},
			ports.Field{Key: "from_id", Value: start})
	}
	return nil
}
