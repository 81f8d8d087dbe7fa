package ports

import "github.com/zhuoqizheng/rovio/internal/domain"

// DecisionJournal persists batches of guard decisions for audit and replay.
type DecisionJournal interface {
	WriteBatch(decisions []*domain.Decision) error
	Name() string
}
