package health

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// Config holds the guard thresholds. All areas are pixel covariance ellipse
// areas, all velocities m/s. Values are bound once at construction; the
// monitor never validates them — that is the configuration source's job.
type Config struct {
	// Enabled gates whether the guard's reset decisions are acted upon.
	// Evaluation itself always runs so the failsafe cache stays warm.
	Enabled bool `yaml:"enabled"`

	// Below this speed the landmark covariance is not a trustworthy
	// divergence signal (loss of parallax), so the cycle is always healthy.
	VelocityToConsiderStatic float64 `yaml:"velocity_to_consider_static"`

	// Consecutive unhealthy cycles tolerated before a reset is signaled.
	// Strictly more than this many are required.
	MaxSubsequentUnhealthyUpdates int `yaml:"max_subsequent_unhealthy_updates"`

	// Quality ceiling for a cycle to be eligible for failsafe caching.
	HealthyFeaturePixelCovArea float64 `yaml:"healthy_feature_pixel_cov_area"`

	// Maximum quality drift between the cached and current median for the
	// failsafe pose to be replaced.
	HealthyFeaturePixelCovAreaIncrement float64 `yaml:"healthy_feature_pixel_cov_area_increment"`

	// Quality ceiling above which a non-static cycle is unhealthy.
	UnhealthyFeaturePixelCovArea float64 `yaml:"unhealthy_feature_pixel_cov_area"`

	// Speed above which a non-static cycle is unconditionally unhealthy.
	UnhealthyVelocity float64 `yaml:"unhealthy_velocity"`
}

// DefaultConfig returns the reference thresholds. The guard ships disabled;
// deployments opt in explicitly.
func DefaultConfig() Config {
	return Config{
		Enabled:                             false,
		VelocityToConsiderStatic:            0.1,
		MaxSubsequentUnhealthyUpdates:       2,
		HealthyFeaturePixelCovArea:          1.0,
		HealthyFeaturePixelCovAreaIncrement: 0.3,
		UnhealthyFeaturePixelCovArea:        5.0,
		UnhealthyVelocity:                   6.0,
	}
}

// FailsafePose is the last pose cached while the estimator was both healthy
// and quality-stable, usable as a recovery anchor after a reset.
type FailsafePose struct {
	Position      r3.Vec
	Orientation   quat.Number
	QualityMedian float64
}

// Monitor classifies estimator cycles as healthy or diverged and maintains
// the failsafe pose cache. It is a pure function of its inputs plus prior
// state and is not safe for concurrent use: a single estimator update
// pipeline must drive it serially.
type Monitor struct {
	cfg Config
	obs ports.Observability

	unhealthyStreak int
	failsafe        FailsafePose
}

// NewMonitor builds a monitor with zeroed state: zero failsafe position,
// identity orientation, cached quality 0. A nil observability sink disables
// diagnostics without affecting decisions.
func NewMonitor(cfg Config, obs ports.Observability) *Monitor {
	if obs == nil {
		obs = noopObs{}
	}
	return &Monitor{
		cfg: cfg,
		obs: obs,
		failsafe: FailsafePose{
			Orientation: quat.Number{Real: 1},
		},
	}
}

// Enabled reports whether reset decisions should be acted upon.
func (m *Monitor) Enabled() bool { return m.cfg.Enabled }

// EvaluateCycle consumes one estimator cycle and returns true when the
// estimator must be reset now.
//
// A cycle is unhealthy when the platform is moving (speed above the static
// gate) and either the speed or the quality median exceeds its unhealthy
// limit. Unhealthy cycles grow a streak counter; the reset fires once the
// streak strictly exceeds MaxSubsequentUnhealthyUpdates and keeps firing
// while unhealthy cycles continue — the counter is only cleared by a healthy
// cycle. Healthy cycles reset the counter and, when the quality median is
// below the healthy ceiling and close to the cached value, refresh the
// failsafe pose.
func (m *Monitor) EvaluateCycle(featureCovAreas []float64, velocity, position r3.Vec, orientation quat.Number) bool {
	median := QualityMedian(featureCovAreas)
	speed := r3.Norm(velocity)
	return m.evaluate(median, speed, position, orientation)
}

// Observe is EvaluateCycle plus a journalable record of the verdict.
func (m *Monitor) Observe(o *domain.Observation) *domain.Decision {
	median := QualityMedian(o.FeatureCovAreas)
	speed := r3.Norm(o.Velocity)
	reset := m.evaluate(median, speed, o.Position, o.Orientation)

	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &domain.Decision{
		Seq:             o.Seq,
		Timestamp:       ts,
		Reset:           reset,
		QualityMedian:   median,
		Speed:           speed,
		UnhealthyStreak: m.unhealthyStreak,
		SourceNodeID:    o.SourceNodeID,
	}
}

func (m *Monitor) evaluate(median, speed float64, position r3.Vec, orientation quat.Number) bool {
	m.obs.IncCounter("rovio_health_cycles_total", 1)
	m.obs.SetGauge("rovio_health_quality_median", median)
	m.obs.SetGauge("rovio_health_speed", speed)

	if speed > m.cfg.VelocityToConsiderStatic &&
		(speed > m.cfg.UnhealthyVelocity || median > m.cfg.UnhealthyFeaturePixelCovArea) {
		m.unhealthyStreak++
		m.obs.IncCounter("rovio_health_unhealthy_cycles_total", 1)
		m.obs.SetGauge("rovio_health_unhealthy_streak", float64(m.unhealthyStreak))
		m.obs.LogInfo("estimator_fault_counter",
			ports.Field{Key: "count", Value: m.unhealthyStreak},
			ports.Field{Key: "limit", Value: m.cfg.MaxSubsequentUnhealthyUpdates})

		if m.unhealthyStreak > m.cfg.MaxSubsequentUnhealthyUpdates {
			m.obs.IncCounter("rovio_health_resets_total", 1)
			m.obs.LogCritical("estimator_reset_required", nil,
				ports.Field{Key: "speed", Value: speed},
				ports.Field{Key: "speed_limit", Value: m.cfg.UnhealthyVelocity},
				ports.Field{Key: "quality_median", Value: median},
				ports.Field{Key: "quality_limit", Value: m.cfg.UnhealthyFeaturePixelCovArea})
			return true
		}
		return false
	}

	if median < m.cfg.HealthyFeaturePixelCovArea {
		// The proximity check is symmetric on purpose: a large improvement
		// is rejected the same as a large regression.
		if math.Abs(median-m.failsafe.QualityMedian) < m.cfg.HealthyFeaturePixelCovAreaIncrement {
			m.failsafe = FailsafePose{
				Position:      position,
				Orientation:   orientation,
				QualityMedian: median,
			}
		}
	}
	m.unhealthyStreak = 0
	m.obs.SetGauge("rovio_health_unhealthy_streak", 0)
	return false
}

// FailsafePosition returns the cached failsafe position, zero before any
// cache update.
func (m *Monitor) FailsafePosition() r3.Vec { return m.failsafe.Position }

// FailsafeOrientation returns the cached failsafe orientation, identity
// before any cache update.
func (m *Monitor) FailsafeOrientation() quat.Number { return m.failsafe.Orientation }

// UnhealthyStreak returns the current consecutive-unhealthy-cycle count.
func (m *Monitor) UnhealthyStreak() int { return m.unhealthyStreak }

type noopObs struct{}

func (noopObs) LogInfo(string, ...ports.Field)                             {}
func (noopObs) LogError(string, error, ...ports.Field)                     {}
func (noopObs) LogCritical(string, error, ...ports.Field)                  {}
func (noopObs) IncCounter(string, float64)                                 {}
func (noopObs) ObserveLatency(string, float64)                             {}
func (noopObs) SetGauge(string, float64)                                   {}
func (noopObs) RecordDropped(ports.WALEntryID, *domain.Decision, error)    {}
