package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	DefaultAnomalyWindow      = 500
	DefaultAnomalyMinSamples  = 30
	DefaultAnomalyZThreshold  = 3.5
	DefaultAnomalyTurnoverMax = 50.0

	// madScale makes the median absolute deviation comparable to a standard
	// deviation for normally distributed data.
	madScale = 1.4826
)

// AnomalyConfig tunes the anomaly detector.
type AnomalyConfig struct {
	Window      int
	MinSamples  int
	ZThreshold  float64
	TurnoverMax float64
}

// AnomalyResult is the anomaly verdict for one asset.
type AnomalyResult struct {
	IsAnomaly  bool    `json:"is_anomaly"`
	Score      float64 `json:"score"`
	Method     string  `json:"method"` // robust_z or turnover
	Population int     `json:"population"`
	Details    string  `json:"details,omitempty"`
}

var featureNames = [...]string{"log_volume", "log_liquidity", "price_change"}

type featureVector [len(featureNames)]float64

func features(m MarketData) featureVector {
	return featureVector{
		math.Log1p(math.Max(m.Volume24h, 0)),
		math.Log1p(math.Max(m.LiquidityUSD, 0)),
		m.PriceChange24h,
	}
}

// AnomalyDetector scores assets against a rolling population of recently seen
// assets. Until MinSamples vectors have been observed it falls back to a fixed
// volume/liquidity turnover rule.
type AnomalyDetector struct {
	cfg AnomalyConfig

	mu   sync.Mutex
	ring []featureVector
	next int
}

// NewAnomalyDetector creates a detector with an empty population.
func NewAnomalyDetector(cfg AnomalyConfig) *AnomalyDetector {
	if cfg.Window <= 0 {
		cfg.Window = DefaultAnomalyWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultAnomalyMinSamples
	}
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = DefaultAnomalyZThreshold
	}
	if cfg.TurnoverMax <= 0 {
		cfg.TurnoverMax = DefaultAnomalyTurnoverMax
	}
	return &AnomalyDetector{
		cfg:  cfg,
		ring: make([]featureVector, 0, cfg.Window),
	}
}

// Len returns the current population size.
func (d *AnomalyDetector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ring)
}

// Seed replaces the population with the given observations (oldest first).
func (d *AnomalyDetector) Seed(history []MarketData) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ring = d.ring[:0]
	d.next = 0
	for _, m := range history {
		d.observeLocked(features(m))
	}
}

// Evaluate scores m against the population and then adds it.
func (d *AnomalyDetector) Evaluate(m MarketData) AnomalyResult {
	fv := features(m)

	d.mu.Lock()
	defer d.mu.Unlock()

	var res AnomalyResult
	if len(d.ring) >= d.cfg.MinSamples {
		res = d.robustScoreLocked(fv)
	} else {
		res = d.turnoverScore(m)
	}
	res.Population = len(d.ring)

	d.observeLocked(fv)
	return res
}

func (d *AnomalyDetector) observeLocked(fv featureVector) {
	if len(d.ring) < d.cfg.Window {
		d.ring = append(d.ring, fv)
		return
	}
	d.ring[d.next] = fv
	d.next = (d.next + 1) % d.cfg.Window
}

func (d *AnomalyDetector) robustScoreLocked(fv featureVector) AnomalyResult {
	res := AnomalyResult{Method: "robust_z"}

	column := make([]float64, len(d.ring))
	for i := range featureNames {
		for j, v := range d.ring {
			column[j] = v[i]
		}
		med := median(column)
		for j := range column {
			column[j] = math.Abs(column[j] - med)
		}
		mad := median(column) * madScale
		if mad == 0 {
			continue
		}

		z := math.Abs(fv[i]-med) / mad
		if z > res.Score {
			res.Score = z
			res.Details = fmt.Sprintf("%s z=%.2f", featureNames[i], z)
		}
	}

	res.IsAnomaly = res.Score > d.cfg.ZThreshold
	return res
}

// turnoverScore flags volume that is implausibly large relative to pool
// liquidity.
func (d *AnomalyDetector) turnoverScore(m MarketData) AnomalyResult {
	res := AnomalyResult{Method: "turnover"}
	switch {
	case m.Volume24h <= 0:
		return res
	case m.LiquidityUSD <= 0:
		res.Score = math.MaxFloat64
		res.IsAnomaly = true
		res.Details = "volume without liquidity"
		return res
	}

	res.Score = m.Volume24h / m.LiquidityUSD
	res.IsAnomaly = res.Score > d.cfg.TurnoverMax
	res.Details = fmt.Sprintf("turnover %.1fx", res.Score)
	return res
}

// median sorts a copy of values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
