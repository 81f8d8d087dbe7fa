package ports

import (
	"context"

	"github.com/zhuoqizheng/rovio/internal/domain"
)

// EstimatorResetter delivers the reset signal back to the estimator. How the
// reset is actually performed is the estimator's business; the guard only
// decides whether it must happen.
type EstimatorResetter interface {
	RequestReset(ctx context.Context, d *domain.Decision) error
}
