package health

import (
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

func testConfig() Config {
	return Config{
		Enabled:                             true,
		VelocityToConsiderStatic:            0.1,
		MaxSubsequentUnhealthyUpdates:       2,
		HealthyFeaturePixelCovArea:          1.0,
		HealthyFeaturePixelCovAreaIncrement: 0.3,
		UnhealthyFeaturePixelCovArea:        5.0,
		UnhealthyVelocity:                   6.0,
	}
}

func TestMonitorResetAfterStreakExceedsBudget(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	fast := r3.Vec{X: 7} // above both the static gate and the velocity limit
	want := []bool{false, false, true}
	for i, exp := range want {
		got := m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1})
		if got != exp {
			t.Fatalf("cycle %d: expected reset=%v, got %v", i+1, exp, got)
		}
		if m.UnhealthyStreak() != i+1 {
			t.Fatalf("cycle %d: expected streak %d, got %d", i+1, i+1, m.UnhealthyStreak())
		}
	}
}

func TestMonitorCounterKeepsGrowingAfterReset(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	fast := r3.Vec{X: 7}
	for i := 0; i < 5; i++ {
		m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1})
	}
	// Reset signaling does not clear the counter; only a healthy cycle does.
	if m.UnhealthyStreak() != 5 {
		t.Fatalf("expected streak 5, got %d", m.UnhealthyStreak())
	}
	if !m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1}) {
		t.Fatalf("expected reset to keep firing while unhealthy cycles continue")
	}
}

func TestMonitorHealthyCycleClearsCounter(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	fast := r3.Vec{X: 7}
	slow := r3.Vec{X: 0.05} // below the static gate

	for i := 0; i < 10; i++ {
		if m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1}) {
			t.Fatalf("iteration %d: reset should never fire with interleaved healthy cycles", i)
		}
		if m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1}) {
			t.Fatalf("iteration %d: reset should never fire with interleaved healthy cycles", i)
		}
		m.EvaluateCycle(nil, slow, r3.Vec{}, quat.Number{Real: 1})
		if m.UnhealthyStreak() != 0 {
			t.Fatalf("iteration %d: expected streak cleared, got %d", i, m.UnhealthyStreak())
		}
	}
}

func TestMonitorStaticPlatformAlwaysHealthy(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	// Arbitrarily poor quality while stationary: parallax loss makes the
	// covariance signal meaningless, so the cycle is healthy.
	samples := []float64{100, 100, 100}
	for i := 0; i < 5; i++ {
		if m.EvaluateCycle(samples, r3.Vec{X: 0.05}, r3.Vec{}, quat.Number{Real: 1}) {
			t.Fatalf("stationary cycle %d classified unhealthy", i)
		}
		if m.UnhealthyStreak() != 0 {
			t.Fatalf("stationary cycle %d: expected streak 0, got %d", i, m.UnhealthyStreak())
		}
	}
}

func TestMonitorUnhealthyByQualityAlone(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	// Moving but under the velocity limit; quality median above the limit.
	moving := r3.Vec{X: 1}
	samples := []float64{6, 6, 6}
	want := []bool{false, false, true}
	for i, exp := range want {
		if got := m.EvaluateCycle(samples, moving, r3.Vec{}, quat.Number{Real: 1}); got != exp {
			t.Fatalf("cycle %d: expected reset=%v, got %v", i+1, exp, got)
		}
	}
}

func TestMonitorFailsafeDefaultsBeforeAnyUpdate(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	if pos := m.FailsafePosition(); pos != (r3.Vec{}) {
		t.Fatalf("expected zero failsafe position, got %+v", pos)
	}
	if q := m.FailsafeOrientation(); q != (quat.Number{Real: 1}) {
		t.Fatalf("expected identity failsafe orientation, got %+v", q)
	}
}

func TestMonitorFailsafeCacheUpdate(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	pos := r3.Vec{X: 1, Y: 2, Z: 3}
	q := quat.Number{Real: 0.5, Imag: 0.5, Jmag: 0.5, Kmag: 0.5}

	// Healthy, quality below the healthy ceiling and within the increment
	// of the cached 0: the cache adopts the pose.
	if m.EvaluateCycle([]float64{0.2, 0.2, 0.2}, r3.Vec{X: 0.05}, pos, q) {
		t.Fatalf("healthy cycle signaled reset")
	}
	if m.FailsafePosition() != pos {
		t.Fatalf("expected failsafe position %+v, got %+v", pos, m.FailsafePosition())
	}
	if m.FailsafeOrientation() != q {
		t.Fatalf("expected failsafe orientation %+v, got %+v", q, m.FailsafeOrientation())
	}
}

func TestMonitorFailsafeRejectsQualityJump(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	first := r3.Vec{X: 1}
	m.EvaluateCycle([]float64{0.1}, r3.Vec{X: 0.05}, first, quat.Number{Real: 1})
	if m.FailsafePosition() != first {
		t.Fatalf("expected initial cache update")
	}

	// Healthy and below the healthy ceiling, but 0.8 away from the cached
	// 0.1: outside the increment, so the cache stays put. The check is
	// symmetric, so a jump toward better quality is rejected the same way.
	other := r3.Vec{X: 9}
	m.EvaluateCycle([]float64{0.9}, r3.Vec{X: 0.05}, other, quat.Number{Real: 1})
	if m.FailsafePosition() != first {
		t.Fatalf("cache updated despite quality jump: %+v", m.FailsafePosition())
	}
}

func TestMonitorFailsafeNotTouchedOnUnhealthyCycle(t *testing.T) {
	m := NewMonitor(testConfig(), nil)

	cached := r3.Vec{X: 1}
	m.EvaluateCycle([]float64{0.1}, r3.Vec{X: 0.05}, cached, quat.Number{Real: 1})

	// Unhealthy branch never writes the cache, even with perfect quality.
	m.EvaluateCycle(nil, r3.Vec{X: 7}, r3.Vec{X: 42}, quat.Number{Real: 1})
	if m.FailsafePosition() != cached {
		t.Fatalf("unhealthy cycle touched the failsafe cache")
	}
}

func TestMonitorEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	m := NewMonitor(cfg, nil)
	if m.Enabled() {
		t.Fatalf("expected disabled monitor")
	}
	// Decisions are still computed while disabled; only acting on them is
	// gated by the caller.
	fast := r3.Vec{X: 7}
	m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1})
	m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1})
	if !m.EvaluateCycle(nil, fast, r3.Vec{}, quat.Number{Real: 1}) {
		t.Fatalf("disabled monitor should still evaluate")
	}
}

func TestMonitorObserveProducesDecision(t *testing.T) {
	obs := &captureObs{}
	m := NewMonitor(testConfig(), obs)

	o := &domain.Observation{
		Seq:             9,
		FeatureCovAreas: []float64{6, 6, 6},
		Velocity:        r3.Vec{X: 3, Y: 4}, // speed 5
		SourceNodeID:    "rovio-0",
	}
	d := m.Observe(o)

	if d.Seq != 9 || d.SourceNodeID != "rovio-0" {
		t.Fatalf("decision lost observation identity: %+v", d)
	}
	if d.Reset {
		t.Fatalf("first unhealthy cycle must not signal reset")
	}
	if d.QualityMedian != 6 {
		t.Fatalf("expected quality median 6, got %v", d.QualityMedian)
	}
	if d.Speed != 5 {
		t.Fatalf("expected speed 5, got %v", d.Speed)
	}
	if d.UnhealthyStreak != 1 {
		t.Fatalf("expected streak 1, got %d", d.UnhealthyStreak)
	}
	if d.Timestamp.IsZero() {
		t.Fatalf("expected decision timestamp to be filled")
	}
	if len(obs.infos) == 0 {
		t.Fatalf("expected fault counter diagnostic")
	}
}

type captureObs struct {
	infos     []string
	criticals []string
}

func (c *captureObs) LogInfo(msg string, _ ...ports.Field) { c.infos = append(c.infos, msg) }
func (c *captureObs) LogError(string, error, ...ports.Field) {}
func (c *captureObs) LogCritical(msg string, _ error, _ ...ports.Field) {
	c.criticals = append(c.criticals, msg)
}
func (c *captureObs) IncCounter(string, float64)                              {}
func (c *captureObs) ObserveLatency(string, float64)                          {}
func (c *captureObs) SetGauge(string, float64)                                {}
func (c *captureObs) RecordDropped(ports.WALEntryID, *domain.Decision, error) {}
