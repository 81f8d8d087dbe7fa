package queue

import (
	"testing"

	"github.com/zhuoqizheng/rovio/internal/domain"
)

func TestMemQueueEnqueueDequeueOrder(t *testing.T) {
	q := NewMemQueue(4)

	d1 := &domain.Decision{Seq: 1}
	d2 := &domain.Decision{Seq: 2}

	if !q.Enqueue(1, d1) || !q.Enqueue(2, d2) {
		t.Fatalf("expected successful enqueue")
	}

	batch := q.DequeueBatch(1)
	if len(batch) != 1 || batch[0].ID != 1 || batch[0].Decision.Seq != 1 {
		t.Fatalf("unexpected first batch: %+v", batch)
	}

	remaining := q.DequeueBatch(10)
	if len(remaining) != 1 || remaining[0].ID != 2 {
		t.Fatalf("unexpected second batch: %+v", remaining)
	}

	if q.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", q.Len())
	}
}

func TestMemQueueCapacity(t *testing.T) {
	q := NewMemQueue(2)

	d := &domain.Decision{Seq: 7}

	if !q.Enqueue(1, d) || !q.Enqueue(2, d) {
		t.Fatalf("expected enqueue within capacity")
	}
	if q.Enqueue(3, d) {
		t.Fatalf("enqueue should fail when capacity exceeded")
	}

	q.DequeueBatch(1)
	if !q.Enqueue(4, d) {
		t.Fatalf("expected enqueue to succeed after dequeue")
	}
}
