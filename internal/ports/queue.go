package ports

import "github.com/zhuoqizheng/rovio/internal/domain"

type QueuedDecision struct {
	ID       WALEntryID
	Decision *domain.Decision
}

type DecisionQueue interface {
	Enqueue(id WALEntryID, d *domain.Decision) bool
	DequeueBatch(max int) []QueuedDecision
	Len() int
}
