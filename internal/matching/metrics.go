package matching

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_calculations_total",
			Help: "Total number of compatibility calculations",
		},
		[]string{"version"},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of compatibility scores (0-100)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_cache_operations_total",
			Help: "Pair cache operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	selectionSizes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_selection_sizes",
			Help:    "Number of profiles returned per daily selection",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		},
	)
)

func recordCalculation(version Version, score float64) {
	calculationsTotal.WithLabelValues(string(version)).Inc()
	compatibilityScores.Observe(score)
}

func recordSelection(size int) {
	selectionSizes.Observe(float64(size))
}

// Stats is the process-wide calculation accumulator behind the
// algorithm stats endpoint. All fields are atomics so recording never
// blocks or serializes the scoring path.
type Stats struct {
	calculations   atomic.Int64
	v2Calculations atomic.Int64
	scoreMillis    atomic.Int64 // sum of scores, in thousandths
	lastUpdateUnix atomic.Int64
}

func NewStats() *Stats {
	return &Stats{}
}

// Record adds one calculation to the running totals.
func (s *Stats) Record(version Version, score float64) {
	s.calculations.Add(1)
	if version == VersionAdvanced {
		s.v2Calculations.Add(1)
	}
	s.scoreMillis.Add(int64(math.Round(score * 1000)))
	s.lastUpdateUnix.Store(time.Now().Unix())
}

// StatsSnapshot is a point-in-time view of the accumulator.
type StatsSnapshot struct {
	TotalCalculations int64     `json:"totalCalculations"`
	V2Calculations    int64     `json:"totalV2Calculations"`
	AverageScore      float64   `json:"averageScore"`
	LastUpdate        time.Time `json:"lastUpdate"`
}

// Snapshot reads the counters. The fields are read independently, so a
// snapshot taken during concurrent recording may be off by a single
// in-flight calculation; that is fine for a stats endpoint.
func (s *Stats) Snapshot() StatsSnapshot {
	total := s.calculations.Load()
	avg := 0.0
	if total > 0 {
		// scoreMillis/total is the average in thousandths; keep two decimals.
		avg = math.Round(float64(s.scoreMillis.Load())/float64(total)/10) / 100
	}
	return StatsSnapshot{
		TotalCalculations: total,
		V2Calculations:    s.v2Calculations.Load(),
		AverageScore:      avg,
		LastUpdate:        time.Unix(s.lastUpdateUnix.Load(), 0).UTC(),
	}
}
