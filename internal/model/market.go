package model

import "time"

// PriceSnapshot is the latest ticker state for the tracked pair.
// It is replaced wholesale on each update; no history is kept.
type PriceSnapshot struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Change24h float64   `json:"change24h"`
	High24h   float64   `json:"high24h"`
	Low24h    float64   `json:"low24h"`
	Volume24h float64   `json:"volume24h"`
}

// Candle is one OHLCV bar of a timeframe series.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Source tells which channel produced an Update.
type Source string

const (
	SourcePush Source = "push"
	SourcePull Source = "pull"
)

// Update is one self-consistent snapshot of price and the full analysis batch.
// Price or Analyses being nil marks a partial update, which the store rejects.
type Update struct {
	Source   Source
	Price    *PriceSnapshot
	Analyses []TimeframeAnalysis
}

// Timestamp returns the snapshot instant used for last-write-wins ordering.
func (u Update) Timestamp() time.Time {
	if u.Price == nil {
		return time.Time{}
	}
	return u.Price.Timestamp
}
