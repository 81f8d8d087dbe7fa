package pipeline

import (
	"time"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// RunJournalPipeline drains queued decisions into the journal in batches,
// committing the WAL only after a successful write so a journal outage
// replays instead of losing records.
func RunJournalPipeline(wal ports.WAL, q ports.DecisionQueue, journal ports.DecisionJournal, pol ports.Policy, obs ports.Observability) {
	for {
		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			time.Sleep(pol.IdleSleep)
			continue
		}

		var (
			out   = make([]*domain.Decision, 0, len(batch))
			maxID ports.WALEntryID
		)
		for _, item := range batch {
			out = append(out, item.Decision)
			if item.ID > maxID {
				maxID = item.ID
			}
		}

		start := time.Now()
		if err := journal.WriteBatch(out); err != nil {
			obs.LogError("journal_write_failed", err)
			// keep WAL; replays later
			continue
		}
		obs.ObserveLatency("guard_journal_latency_seconds", time.Since(start).Seconds())
		obs.IncCounter("rovio_guard_decisions_journaled_total", float64(len(out)))

		if err := wal.Commit(maxID); err != nil {
			obs.LogError("wal_commit_failed", err)
		}
	}
}
