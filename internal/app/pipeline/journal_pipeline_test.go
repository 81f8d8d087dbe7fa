package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

func TestJournalPipelineWritesBatchAndCommits(t *testing.T) {
	q := &batchQueue{
		batches: [][]ports.QueuedDecision{
			{
				{ID: 1, Decision: &domain.Decision{Seq: 1}},
				{ID: 2, Decision: &domain.Decision{Seq: 2, Reset: true}},
			},
		},
	}
	wal := &commitWAL{}
	j := &captureJournal{}
	pol := ports.Policy{MaxBatchSize: 10, IdleSleep: time.Millisecond}
	obs := &mockObs{}

	go RunJournalPipeline(wal, q, j, pol, obs)

	waitFor(t, func() bool { return wal.committed(2) })

	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.written) != 2 {
		t.Fatalf("expected 2 journaled decisions, got %d", len(j.written))
	}
	if j.written[0].Seq != 1 || j.written[1].Seq != 2 {
		t.Fatalf("journal order broken: %+v", j.written)
	}
}

type batchQueue struct {
	mu      sync.Mutex
	batches [][]ports.QueuedDecision
}

func (q *batchQueue) Enqueue(ports.WALEntryID, *domain.Decision) bool { return true }

func (q *batchQueue) DequeueBatch(int) []ports.QueuedDecision {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batches) == 0 {
		return nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b
}

func (q *batchQueue) Len() int { return 0 }

type commitWAL struct {
	ports.WAL
	mu    sync.Mutex
	upTo  ports.WALEntryID
	calls int
}

func (w *commitWAL) Commit(upto ports.WALEntryID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if upto > w.upTo {
		w.upTo = upto
	}
	return nil
}

func (w *commitWAL) committed(id ports.WALEntryID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.upTo >= id
}

type captureJournal struct {
	mu      sync.Mutex
	written []*domain.Decision
}

func (j *captureJournal) WriteBatch(decisions []*domain.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.written = append(j.written, decisions...)
	return nil
}

func (j *captureJournal) Name() string { return "capture" }
