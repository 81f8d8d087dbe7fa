package domain

import "time"

// Decision is the guard's verdict for one estimator cycle. Decisions are
// final records: once emitted they are journaled as-is.
type Decision struct {
	Seq             uint64    `json:"seq"`
	Timestamp       time.Time `json:"ts"`
	Reset           bool      `json:"reset"`
	QualityMedian   float64   `json:"quality_median"`
	Speed           float64   `json:"speed"`
	UnhealthyStreak int       `json:"unhealthy_streak"`
	SourceNodeID    string    `json:"source_node_id"`
}
