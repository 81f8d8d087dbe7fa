package roviohealth

import (
	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// PipelineObservation is the estimator cycle that flows into the monitor.
// It mirrors internal/domain.Observation but is exported so custom sources
// can reference it.
type PipelineObservation = domain.Observation

// PipelineDecision is the verdict that flows through the WAL→queue→journal
// pipeline.
type PipelineDecision = domain.Decision

// QueuedDecision represents an item buffered inside the bounded queue.
type QueuedDecision = ports.QueuedDecision

// EstimatorSource streams per-cycle observations from the running estimator
// (OPC UA bridge, in-process feed, replayed logs) into the guard.
type EstimatorSource = ports.EstimatorSource

// EstimatorResetter delivers the guard's reset signal back to the estimator.
type EstimatorResetter = ports.EstimatorResetter

// DecisionQueue is the bounded, in-memory queue that decouples the guard
// loop and the journal.
type DecisionQueue = ports.DecisionQueue

// DecisionJournal consumes batches of decisions and persists them to any
// downstream system.
type DecisionJournal = ports.DecisionJournal

// Observability emits metrics/logs about health verdicts, throughput, and
// drop conditions.
type Observability = ports.Observability

// Field is a structured log/metric field used by Observability implementations.
type Field = ports.Field

// WAL abstracts the write-ahead log used for decision durability.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID
