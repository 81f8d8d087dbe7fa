package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/health"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// RunGuardPipeline starts the per-cycle evaluation loop: observations from
// the estimator source are classified by the monitor, reset signals are
// delivered through the resetter (gated on the monitor being enabled), and
// every decision is appended to the WAL and queued for the journal.
func RunGuardPipeline(src ports.EstimatorSource, mon *health.Monitor, rst ports.EstimatorResetter, wal ports.WAL, q ports.DecisionQueue, pol ports.Policy, obs ports.Observability) error {
	ch := make(chan *domain.Observation, pol.MaxQueueLen)

	if err := src.Start(ch); err != nil {
		return err
	}

	go func() {
		for o := range ch {
			d := mon.Observe(o)

			if d.Reset && mon.Enabled() && rst != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := rst.RequestReset(ctx, d); err != nil {
					obs.LogCritical("estimator_reset_failed", err,
						ports.Field{Key: "seq", Value: d.Seq})
				}
				cancel()
			}

			if !waitForWALCapacity(wal, pol, obs) {
				continue
			}

			id, err := wal.Append(d)
			if err != nil {
				obs.LogCritical("wal_append_failed", err)
				continue
			}

			if !enqueueWithPolicy(q, id, d, pol, obs) {
				obs.IncCounter("rovio_guard_decisions_dropped_total", 1)
			}
		}
	}()

	return nil
}

func waitForWALCapacity(wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			time.Sleep(sleep)
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func enqueueWithPolicy(q ports.DecisionQueue, id ports.WALEntryID, d *domain.Decision, pol ports.Policy, obs ports.Observability) bool {
	sleep := pol.IdleSleep
	if sleep <= 0 {
		sleep = 5 * time.Millisecond
	}

	for {
		if ok := q.Enqueue(id, d); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			time.Sleep(sleep)
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen))
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
