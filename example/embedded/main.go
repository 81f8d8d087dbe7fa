package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zhuoqizheng/rovio"
)

// Drives the guard from an in-process estimator loop: a synthetic filter
// tracks a circular trajectory, degrades its landmark covariances halfway
// through, and re-anchors to the failsafe pose when the guard signals a reset.
func main() {
	cfg := &rovio.ExternalGuardConfig{
		Monitor: rovio.MonitorConfig{
			Enabled:                             true,
			VelocityToConsiderStatic:            0.1,
			MaxSubsequentUnhealthyUpdates:       2,
			HealthyFeaturePixelCovArea:          1.0,
			HealthyFeaturePixelCovAreaIncrement: 0.3,
			UnhealthyFeaturePixelCovArea:        5.0,
			UnhealthyVelocity:                   6.0,
		},
		WAL: rovio.WALConfig{Dir: "./data/embedded-wal"},
	}

	guard, err := rovio.NewExternalGuard(cfg, func(batch []rovio.Decision) error {
		for _, d := range batch {
			fmt.Printf("journal: seq=%d reset=%v median=%.3f\n", d.Seq, d.Reset, d.QualityMedian)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("new guard: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := guard.Close(ctx); err != nil {
			log.Printf("close guard: %v", err)
		}
	}()

	rng := rand.New(rand.NewSource(42))
	for seq := uint64(1); seq <= 40; seq++ {
		angle := float64(seq) * 0.15
		obs := rovio.Observation{
			Seq:             seq,
			Timestamp:       time.Now(),
			Velocity:        r3.Vec{X: 2 * math.Cos(angle), Y: 2 * math.Sin(angle)},
			Position:        r3.Vec{X: 5 * math.Sin(angle), Y: -5 * math.Cos(angle)},
			Orientation:     quat.Number{Real: math.Cos(angle / 2), Kmag: math.Sin(angle / 2)},
			FeatureCovAreas: syntheticAreas(rng, seq > 20),
			SourceNodeID:    "embedded-demo",
		}

		reset, err := guard.Evaluate(obs)
		if err != nil {
			log.Printf("evaluate seq=%d: %v", seq, err)
		}
		if reset {
			fmt.Printf("reset at seq=%d, re-anchoring to %+v\n", seq, guard.FailsafePosition())
		}

		time.Sleep(25 * time.Millisecond)
	}
}

// syntheticAreas mimics well-tracked landmarks until diverged flips, then
// produces the bloated covariance ellipses of a filter losing its map.
func syntheticAreas(rng *rand.Rand, diverged bool) []float64 {
	areas := make([]float64, 25)
	for i := range areas {
		if diverged {
			areas[i] = 20 + 30*rng.Float64()
		} else {
			areas[i] = 0.1 + 0.4*rng.Float64()
		}
	}
	return areas
}
