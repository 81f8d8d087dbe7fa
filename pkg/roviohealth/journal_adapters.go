package roviohealth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zhuoqizheng/rovio/internal/domain"
)

// ErrChannelJournalClosed is returned when a channel journal is written to after being closed.
var ErrChannelJournalClosed = errors.New("roviohealth: channel journal closed")

// NewCallbackJournal adapts a DecisionBatchSink into a full ports.DecisionJournal
// implementation so callers can plug arbitrary functions without defining structs.
func NewCallbackJournal(name string, fn DecisionBatchSink) DecisionJournal {
	if name == "" {
		name = "callback"
	}
	return &callbackJournal{name: name, fn: fn}
}

// NewChannelJournal exposes decision batches via a channel; it returns the journal,
// the read-only channel, and a close function that the caller should invoke during shutdown.
func NewChannelJournal(name string, buffer int) (DecisionJournal, <-chan []Decision, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Decision, buffer)
	j := &channelJournal{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return j, ch, func() { j.close() }
}

type callbackJournal struct {
	name string
	fn   DecisionBatchSink
}

func (j *callbackJournal) WriteBatch(decisions []*domain.Decision) error {
	if j.fn == nil {
		return fmt.Errorf("callback journal %q: nil handler", j.name)
	}
	if len(decisions) == 0 {
		return nil
	}
	return j.fn(convertDomainBatch(decisions))
}

func (j *callbackJournal) Name() string { return j.name }

type channelJournal struct {
	name   string
	ch     chan []Decision
	closed chan struct{}
	once   sync.Once
}

func (j *channelJournal) WriteBatch(decisions []*domain.Decision) error {
	select {
	case <-j.closed:
		return ErrChannelJournalClosed
	default:
	}

	if len(decisions) == 0 {
		return nil
	}

	batch := convertDomainBatch(decisions)

	select {
	case <-j.closed:
		return ErrChannelJournalClosed
	case j.ch <- batch:
		return nil
	}
}

func (j *channelJournal) Name() string { return j.name }

func (j *channelJournal) close() {
	j.once.Do(func() {
		close(j.closed)
		close(j.ch)
	})
}

func convertDomainBatch(decisions []*domain.Decision) []Decision {
	if len(decisions) == 0 {
		return nil
	}
	out := make([]Decision, len(decisions))
	for i, d := range decisions {
		out[i] = decisionFromDomain(d)
	}
	return out
}
