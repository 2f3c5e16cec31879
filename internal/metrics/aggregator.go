// internal/metrics/aggregator.go
package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/util"
)

// Aggregator collects and manages invocation metrics per capability and model.
type Aggregator struct {
	mutex    sync.Mutex
	metrics  map[string]*CapabilityMetrics
	filePath string
	ticker   *time.Ticker
	done     chan struct{}
	closed   sync.Once
}

// NewAggregator creates an Aggregator backed by filePath. Existing metrics are loaded
// and the file is rewritten every minute until Close.
func NewAggregator(filePath string) *Aggregator {
	agg := &Aggregator{
		metrics:  make(map[string]*CapabilityMetrics),
		filePath: filePath,
		done:     make(chan struct{}),
	}

	if existing, err := Load(filePath); err == nil {
		for _, m := range existing {
			agg.metrics[m.Key] = m
		}
	}

	agg.ticker = time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-agg.ticker.C:
				if err := agg.Save(); err != nil {
					logging.LogEvent("[METRICS] save failed: %v", err)
				}
			case <-agg.done:
				return
			}
		}
	}()

	return agg
}

// Load reads a metrics file.
func Load(filePath string) ([]*CapabilityMetrics, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var metricsSlice []*CapabilityMetrics
	if err := json.Unmarshal(data, &metricsSlice); err != nil {
		return nil, fmt.Errorf("parse metrics file %s: %w", filePath, err)
	}
	return metricsSlice, nil
}

// Save writes the current metrics from memory to the JSON file.
func (a *Aggregator) Save() error {
	if a.filePath == "" {
		return nil
	}
	logging.LogEvent("[METRICS] Saving metrics to %s", a.filePath)
	data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(a.filePath, data)
}

// Snapshot returns copies of the collected metrics sorted by key.
func (a *Aggregator) Snapshot() []*CapabilityMetrics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	out := make([]*CapabilityMetrics, 0, len(a.metrics))
	for _, m := range a.metrics {
		c := *m
		c.PerformanceBuckets = append([]PerformanceBucket(nil), m.PerformanceBuckets...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (a *Aggregator) entry(capability, host, model string) *CapabilityMetrics {
	key := capability + "@" + host + "/" + model
	m, ok := a.metrics[key]
	if !ok {
		m = &CapabilityMetrics{Key: key, Capability: capability, Host: host, Model: model}
		a.metrics[key] = m
	}
	m.LastUpdatedUTC = time.Now().UTC()
	return m
}

// RecordCreate records how long creating a session took, including any download.
func (a *Aggregator) RecordCreate(capability, host, model string, elapsed time.Duration) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	updateRunningStat(&a.entry(capability, host, model).SessionCreateMs, float64(elapsed.Milliseconds()))
}

// Record updates the metrics for a finished invocation.
func (a *Aggregator) Record(s Sample) {
	logging.LogEvent("[METRICS] Record called for %s on model %s (%s)", s.Capability, s.Model, s.Outcome)
	a.mutex.Lock()
	defer a.mutex.Unlock()

	m := a.entry(s.Capability, s.Host, s.Model)
	updateStats(&m.OverallStats, s)

	bucket := getBucket(s.InputChars)
	for i := range m.PerformanceBuckets {
		if m.PerformanceBuckets[i].Dimension == "input_chars" && m.PerformanceBuckets[i].Bucket == bucket {
			updateStats(&m.PerformanceBuckets[i].Stats, s)
			return
		}
	}
	newBucket := PerformanceBucket{Dimension: "input_chars", Bucket: bucket}
	updateStats(&newBucket.Stats, s)
	m.PerformanceBuckets = append(m.PerformanceBuckets, newBucket)
}

// updateStats updates the running statistics with a new sample. Only completed
// invocations contribute timings.
func updateStats(stats *RunningAggregatedStats, s Sample) {
	stats.TotalRequests++
	switch s.Outcome {
	case OutcomeFailed:
		stats.Failures++
		return
	case OutcomeCancelled:
		stats.Cancellations++
		return
	}
	if s.TTFC > 0 {
		updateRunningStat(&stats.TTFCMillis, float64(s.TTFC.Milliseconds()))
	}
	updateRunningStat(&stats.LatencyMillis, float64(s.Latency.Milliseconds()))
	updateRunningStat(&stats.InputChars, float64(s.InputChars))
	updateRunningStat(&stats.OutputChars, float64(s.OutputChars))
	updateRunningStat(&stats.Chunks, float64(s.Chunks))
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// StdDev returns the sample standard deviation.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}

// getBucket determines the performance bucket for an input of the given size.
func getBucket(inputChars int) string {
	switch {
	case inputChars <= 256:
		return "0-256"
	case inputChars <= 1024:
		return "257-1024"
	case inputChars <= 4096:
		return "1025-4096"
	default:
		return "4096+"
	}
}

// Close stops the ticker and saves the metrics.
func (a *Aggregator) Close() error {
	var err error
	a.closed.Do(func() {
		a.ticker.Stop()
		close(a.done)
		err = a.Save()
	})
	return err
}
