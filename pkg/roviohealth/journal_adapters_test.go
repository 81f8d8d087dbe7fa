package roviohealth

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackJournal(t *testing.T) {
	var received []Decision
	jnl := NewCallbackJournal("cb", func(batch []Decision) error {
		received = append(received, batch...)
		return nil
	})

	input := &PipelineDecision{
		Seq:           42,
		Timestamp:     time.Unix(1, 0),
		Reset:         true,
		QualityMedian: 7.5,
		Speed:         8.2,
		SourceNodeID:  "rovio",
	}

	if err := jnl.WriteBatch([]*PipelineDecision{input}); err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 batch entry, got %d", len(received))
	}
	got := received[0]
	if got.Seq != input.Seq || got.SourceNodeID != input.SourceNodeID {
		t.Fatalf("mismatched decision payload: %+v vs %+v", got, input)
	}
	if !got.Reset || got.QualityMedian != 7.5 {
		t.Fatalf("expected verdict fields to be copied, got %+v", got)
	}
}

func TestNewCallbackJournalNilHandler(t *testing.T) {
	jnl := NewCallbackJournal("", nil)
	err := jnl.WriteBatch([]*PipelineDecision{{Seq: 1}})
	if err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelJournal(t *testing.T) {
	jnl, ch, closeFn := NewChannelJournal("chan", 1)
	defer closeFn()

	input := &PipelineDecision{Seq: 7, SourceNodeID: "rovio"}
	errCh := make(chan error, 1)

	go func() {
		errCh <- jnl.WriteBatch([]*PipelineDecision{input})
	}()

	var batch []Decision
	select {
	case batch = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel batch")
	}

	if err := <-errCh; err != nil {
		t.Fatalf("WriteBatch returned error: %v", err)
	}
	if len(batch) != 1 || batch[0].Seq != input.Seq {
		t.Fatalf("unexpected batch data: %+v", batch)
	}

	closeFn()
	if err := jnl.WriteBatch([]*PipelineDecision{input}); !errors.Is(err, ErrChannelJournalClosed) {
		t.Fatalf("expected ErrChannelJournalClosed, got %v", err)
	}
}
