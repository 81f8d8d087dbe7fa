package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// PromObs exposes the guard's health signals as Prometheus metrics and logs
// diagnostics through logrus.
type PromObs struct {
	log      *logrus.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	cycles := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rovio_health_cycles_total",
		Help: "Estimator update cycles evaluated by the health monitor.",
	})
	unhealthy := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rovio_health_unhealthy_cycles_total",
		Help: "Cycles classified as unhealthy.",
	})
	resets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rovio_health_resets_total",
		Help: "Reset signals raised to the estimator.",
	})
	journaled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rovio_guard_decisions_journaled_total",
		Help: "Decisions successfully written to the journal.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rovio_guard_decisions_dropped_total",
		Help: "Decisions lost due to queue backpressure policies.",
	})
	streak := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rovio_health_unhealthy_streak",
		Help: "Current consecutive-unhealthy-cycle count.",
	})
	quality := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rovio_health_quality_median",
		Help: "Median feature pixel covariance ellipse area of the last cycle.",
	})
	speed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rovio_health_speed",
		Help: "Body velocity norm of the last cycle in m/s.",
	})
	walGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rovio_guard_wal_size_bytes",
		Help: "Size of the decision WAL on disk.",
	})
	queueGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rovio_guard_queue_length",
		Help: "Decisions buffered in the in-memory queue.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "guard_journal_latency_seconds",
		Help:    "Latency from dequeued decision batch to journal commit.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	prometheus.MustRegister(cycles, unhealthy, resets, journaled, dropped,
		streak, quality, speed, walGauge, queueGauge, latency)

	return &PromObs{
		log: logrus.StandardLogger(),
		counters: map[string]prometheus.Counter{
			"rovio_health_cycles_total":             cycles,
			"rovio_health_unhealthy_cycles_total":   unhealthy,
			"rovio_health_resets_total":             resets,
			"rovio_guard_decisions_journaled_total": journaled,
			"rovio_guard_decisions_dropped_total":   dropped,
		},
		gauges: map[string]prometheus.Gauge{
			"rovio_health_unhealthy_streak": streak,
			"rovio_health_quality_median":   quality,
			"rovio_health_speed":            speed,
			"rovio_guard_wal_size_bytes":    walGauge,
			"rovio_guard_queue_length":      queueGauge,
		},
		histos: map[string]prometheus.Observer{
			"guard_journal_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).Info(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.WithFields(toLogrus(fields)).WithError(err).Error(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	entry := p.log.WithFields(toLogrus(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordDropped(id ports.WALEntryID, d *domain.Decision, err error) {
	p.IncCounter("rovio_guard_decisions_dropped_total", 1)
	entry := p.log.WithField("wal_id", uint64(id))
	if d != nil {
		entry = entry.WithField("seq", d.Seq)
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("decision dropped")
}

func toLogrus(fields []ports.Field) logrus.Fields {
	if len(fields) == 0 {
		return nil
	}
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
