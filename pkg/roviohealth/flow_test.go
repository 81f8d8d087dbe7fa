package roviohealth

import (
	"context"
	"testing"
	"time"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := &Config{
		Monitor: DefaultMonitorConfig(),
		Policy: Policy{
			MaxWALSizeBytes: 1024 * 1024,
			MaxQueueLen:     8,
			MaxBatchSize:    4,
			IdleSleep:       time.Millisecond,
			OnWALFull:       "block",
			OnQueueFull:     "block",
		},
		Metrics: MetricsConfig{Addr: ":0"},
		WAL:     WALConfig{Dir: t.TempDir()},
	}

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	src := &stubSource{}
	jnl := &stubJournal{}

	rt, err := flow.
		StreamIN(
			StreamInSource(src),
			StreamInObservability(&stubObservability{}),
		).
		StreamOUT(
			StreamOutJournal(jnl),
			StreamOutResetter(&stubResetter{}),
			StreamOutObservability(&stubObservability{}),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if rt.source != src {
		t.Fatalf("expected custom source to be wired")
	}
	if rt.journal != jnl {
		t.Fatalf("expected custom journal to be wired")
	}
}

func TestFlowRunUsesStreamOutOptions(t *testing.T) {
	cfg := &Config{
		Monitor: DefaultMonitorConfig(),
		Policy: Policy{
			MaxWALSizeBytes: 1024 * 1024,
			MaxQueueLen:     4,
			MaxBatchSize:    2,
			IdleSleep:       time.Millisecond,
			OnWALFull:       "block",
			OnQueueFull:     "block",
		},
		Metrics: MetricsConfig{Addr: ":0"},
		WAL:     WALConfig{Dir: t.TempDir()},
	}

	flow, err := ConfFromConfig(cfg)
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop immediately to avoid waiting on a real estimator feed.
	cancel()
	if err := flow.StreamIN(
		StreamInSource(&stubSource{}),
		StreamInObservability(&stubObservability{}),
	).Run(ctx,
		StreamOutJournal(&stubJournal{}),
		StreamOutObservability(&stubObservability{}),
	); err != nil && err != context.Canceled {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
}
