package queue

import (
	"sync"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// MemQueue is a bounded in-memory decision queue that preserves FIFO ordering.
type MemQueue struct {
	mu   sync.Mutex
	data []ports.QueuedDecision
	cap  int
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{
		data: make([]ports.QueuedDecision, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, d *domain.Decision) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		return false
	}
	q.data = append(q.data, ports.QueuedDecision{ID: id, Decision: d})
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedDecision {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]ports.QueuedDecision, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

var _ ports.DecisionQueue = (*MemQueue)(nil)
