package resetter

import (
	"context"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// LogResetter records the reset signal through observability without
// commanding anything, for deployments where the reset is actioned
// out-of-band (an operator, a supervising process manager).
type LogResetter struct {
	obs ports.Observability
}

func NewLogResetter(obs ports.Observability) *LogResetter {
	return &LogResetter{obs: obs}
}

func (r *LogResetter) RequestReset(_ context.Context, d *domain.Decision) error {
	if r.obs != nil {
		r.obs.LogCritical("estimator_reset_signaled", nil,
			ports.Field{Key: "seq", Value: d.Seq},
			ports.Field{Key: "speed", Value: d.Speed},
			ports.Field{Key: "quality_median", Value: d.QualityMedian},
			ports.Field{Key: "unhealthy_streak", Value: d.UnhealthyStreak})
	}
	return nil
}

var _ ports.EstimatorResetter = (*LogResetter)(nil)
