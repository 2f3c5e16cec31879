// internal/metrics/types.go
package metrics

import "time"

// Outcome values recorded for an invocation.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// CapabilityMetrics is the top-level document for one capability served by one model.
type CapabilityMetrics struct {
	Key                string                 `json:"key"`
	Capability         string                 `json:"capability"`
	Host               string                 `json:"host"`
	Model              string                 `json:"model"`
	LastUpdatedUTC     time.Time              `json:"last_updated_utc"`
	SessionCreateMs    RunningStat            `json:"session_create_ms"`
	OverallStats       RunningAggregatedStats `json:"overall_stats"`
	PerformanceBuckets []PerformanceBucket    `json:"performance_buckets"`
}

// PerformanceBucket holds aggregated stats for a specific dimension, like input size.
type PerformanceBucket struct {
	Dimension string                 `json:"dimension"`
	Bucket    string                 `json:"bucket"`
	Stats     RunningAggregatedStats `json:"stats"`
}

// RunningAggregatedStats stores the running statistical values for a set of invocations.
// It uses Welford's online algorithm for calculating mean and standard deviation.
type RunningAggregatedStats struct {
	TotalRequests int64 `json:"total_requests"`
	Failures      int64 `json:"failures"`
	Cancellations int64 `json:"cancellations"`

	TTFCMillis    RunningStat `json:"ttfc_ms"`
	LatencyMillis RunningStat `json:"latency_ms"`
	InputChars    RunningStat `json:"input_chars"`
	OutputChars   RunningStat `json:"output_chars"`
	Chunks        RunningStat `json:"chunks"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Sample describes one finished invocation.
type Sample struct {
	Capability  string
	Host        string
	Model       string
	InputChars  int
	OutputChars int
	Chunks      int
	// TTFC is the time to the first streamed chunk; zero for batch invocations.
	TTFC    time.Duration
	Latency time.Duration
	Outcome string
}
