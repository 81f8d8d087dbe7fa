package ports

import "github.com/zhuoqizheng/rovio/internal/domain"

// EstimatorSource feeds per-cycle observations from the running estimator
// into the guard pipeline.
type EstimatorSource interface {
	Start(out chan<- *domain.Observation) error
	Stop() error
}
