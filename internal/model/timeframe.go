package model

import (
	"fmt"
	"time"
)

// Timeframe is a fixed chart granularity bucket.
type Timeframe string

// TimeframeMeta holds display and duration data for a Timeframe.
type TimeframeMeta struct {
	Label    string
	Duration time.Duration
	Order    int
}

const (
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1D  Timeframe = "1D"
)

var timeframes = map[Timeframe]TimeframeMeta{
	Timeframe15m: {Label: "15m", Duration: 15 * time.Minute, Order: 0},
	Timeframe1h:  {Label: "1h", Duration: time.Hour, Order: 1},
	Timeframe4h:  {Label: "4h", Duration: 4 * time.Hour, Order: 2},
	Timeframe1D:  {Label: "1D", Duration: 24 * time.Hour, Order: 3},
}

// Timeframes returns the tracked timeframes in display order.
func Timeframes() []Timeframe {
	return []Timeframe{Timeframe15m, Timeframe1h, Timeframe4h, Timeframe1D}
}

// IsValid reports whether tf is one of the tracked timeframes.
func (tf Timeframe) IsValid() bool {
	_, ok := timeframes[tf]
	return ok
}

// Meta returns the catalogue entry of tf. The zero value is returned for unknown timeframes.
func (tf Timeframe) Meta() TimeframeMeta {
	return timeframes[tf]
}

func (tf Timeframe) String() string {
	return string(tf)
}

// ParseTimeframe parses a string into a tracked Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.IsValid() {
		return "", fmt.Errorf("invalid timeframe: %q", s)
	}
	return tf, nil
}
