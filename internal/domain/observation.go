package domain

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Observation is one estimator update cycle as published by the filter:
// the per-landmark pixel covariance ellipse areas plus the current state
// estimate. It is owned by the producer and not retained past evaluation.
type Observation struct {
	Seq             uint64      `json:"seq"`
	Timestamp       time.Time   `json:"ts"`
	FeatureCovAreas []float64   `json:"feature_cov_areas"`
	Velocity        r3.Vec      `json:"velocity"`    // body frame, m/s
	Position        r3.Vec      `json:"position"`    // world frame, m
	Orientation     quat.Number `json:"orientation"` // body to world
	SourceNodeID    string      `json:"source_node_id"`
}
