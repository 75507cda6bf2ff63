package model

import "time"

// ExtractionSummary describes how complete one batched extraction was.
type ExtractionSummary struct {
	Label            Label
	TotalRecords     int64
	BatchesRequested int
	BatchesSkipped   int
	SkippedBatches   []int
	RowsFetched      int
}

// Complete reports whether every requested batch was fetched.
func (s ExtractionSummary) Complete() bool {
	return s.BatchesSkipped == 0
}

// Metrics holds holdout evaluation results.
type Metrics struct {
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
	TruePositives  int
	TrueNegatives  int
	FalsePositives int
	FalseNegatives int
}

// TrainingRun records a single end-to-end training run.
type TrainingRun struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	ID            string
	Status        string
	ModelPath     string
	TransformPath string
	SchemaHash    string
	Error         string
	Extractions   []ExtractionSummary
	Metrics       Metrics
	TrainRows     int
	TestRows      int
	FeatureCount  int
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)
