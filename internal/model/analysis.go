package model

import (
	"sort"
	"strconv"
	"time"
)

// Trend is the direction of a wave pattern.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
)

// Action is the side of a trading signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// TargetLevel is the wave-3 projection key carried in FibonacciLevels.Wave3.
const TargetLevel = "1.414"

// SortedLevels returns level labels ordered by their numeric ratio.
// Labels that are not numbers sort after numeric ones, alphabetically.
func SortedLevels(levels map[string]float64) []string {
	keys := make([]string, 0, len(levels))
	for k := range levels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseFloat(keys[i], 64)
		b, errB := strconv.ParseFloat(keys[j], 64)
		switch {
		case errA == nil && errB == nil && a != b:
			return a < b
		case errA == nil && errB != nil:
			return true
		case errA != nil && errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})
	return keys
}

// WavePoint is one pivot of a wave pattern.
type WavePoint struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// FibonacciLevels maps a ratio label (e.g. "0.618") to a price.
type FibonacciLevels struct {
	Wave2 map[string]float64 `json:"wave2Levels"`
	Wave3 map[string]float64 `json:"wave3Levels"`
}

// Target returns the projected wave-3 target, if present.
func (f FibonacciLevels) Target() (float64, bool) {
	v, ok := f.Wave3[TargetLevel]
	return v, ok
}

// WaveAnalysis is a detected 3-point wave structure with its Fibonacci levels.
type WaveAnalysis struct {
	Trend     Trend           `json:"trend"`
	Point1    WavePoint       `json:"point1"`
	Point2    WavePoint       `json:"point2"`
	Point3    WavePoint       `json:"point3"`
	Fibonacci FibonacciLevels `json:"fibonacci"`
}

// Points returns the three pivots in order.
func (w *WaveAnalysis) Points() [3]WavePoint {
	return [3]WavePoint{w.Point1, w.Point2, w.Point3}
}

// Clone returns a deep copy of w.
func (w *WaveAnalysis) Clone() *WaveAnalysis {
	if w == nil {
		return nil
	}
	cp := *w
	cp.Fibonacci = FibonacciLevels{
		Wave2: cloneLevels(w.Fibonacci.Wave2),
		Wave3: cloneLevels(w.Fibonacci.Wave3),
	}
	return &cp
}

// Signal is a per-timeframe trading signal. A Signal never exists without an Action.
type Signal struct {
	Action     Action    `json:"action"`
	Timeframe  Timeframe `json:"timeframe"`
	Reason     string    `json:"reason"`
	Target     float64   `json:"target"`
	Stop       float64   `json:"stop"`
	RiskReward *float64  `json:"riskReward,omitempty"`
}

// Clone returns a deep copy of s.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	cp := *s
	if s.RiskReward != nil {
		rr := *s.RiskReward
		cp.RiskReward = &rr
	}
	return &cp
}

// TimeframeAnalysis is the backend's analysis result for one timeframe.
type TimeframeAnalysis struct {
	Timeframe Timeframe     `json:"timeframe"`
	Wave      *WaveAnalysis `json:"wave,omitempty"`
	Signal    *Signal       `json:"signal,omitempty"`
}

// Clone returns a deep copy of a.
func (a TimeframeAnalysis) Clone() TimeframeAnalysis {
	return TimeframeAnalysis{
		Timeframe: a.Timeframe,
		Wave:      a.Wave.Clone(),
		Signal:    a.Signal.Clone(),
	}
}

// CloneAnalyses deep-copies a batch.
func CloneAnalyses(in []TimeframeAnalysis) []TimeframeAnalysis {
	if in == nil {
		return nil
	}
	out := make([]TimeframeAnalysis, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

func cloneLevels(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
