// Package annotate turns a wave analysis into chart overlay primitives.
//
// Annotate is a pure function of its input. The caller replaces the whole
// annotation layer with each result; there is no incremental diffing, so
// markers from a previous timeframe never leak into the next one.
package annotate

import (
	"strconv"
	"time"

	"wavechart/internal/model"
)

// Position places a marker relative to its bar.
type Position string

const (
	AboveBar Position = "aboveBar"
	BelowBar Position = "belowBar"
)

// LineStyle of a price line.
type LineStyle int

const (
	LineSolid LineStyle = iota
	LineDotted
	LineDashed
)

// Marker is a point annotation anchored to a candle time.
type Marker struct {
	Time     time.Time `json:"time"`
	Position Position  `json:"position"`
	Color    string    `json:"color"`
	Shape    string    `json:"shape"`
	Text     string    `json:"text"`
}

// PriceLine is a horizontal overlay at a fixed price.
type PriceLine struct {
	Price            float64   `json:"price"`
	Color            string    `json:"color"`
	LineWidth        int       `json:"lineWidth"`
	LineStyle        LineStyle `json:"lineStyle"`
	AxisLabelVisible bool      `json:"axisLabelVisible"`
	Title            string    `json:"title"`
	Highlighted      bool      `json:"highlighted"`
}

// Annotations is one complete annotation layer.
type Annotations struct {
	Markers    []Marker    `json:"markers"`
	PriceLines []PriceLine `json:"priceLines"`
}

// Empty reports whether the layer draws nothing.
func (a Annotations) Empty() bool {
	return len(a.Markers) == 0 && len(a.PriceLines) == 0
}

// Target returns the highlighted target line, if any.
func (a Annotations) Target() (PriceLine, bool) {
	for _, l := range a.PriceLines {
		if l.Highlighted {
			return l, true
		}
	}
	return PriceLine{}, false
}

// Style holds the colors used by an Annotator.
type Style struct {
	PointColors [3]string
	MarkerShape string
	LevelColor  string
	TargetColor string
}

// DefaultStyle matches the dashboard palette.
func DefaultStyle() Style {
	return Style{
		PointColors: [3]string{"#2196F3", "#FF9800", "#4CAF50"},
		MarkerShape: "circle",
		LevelColor:  "#FFA500",
		TargetColor: "#00FF00",
	}
}

type Annotator struct {
	style Style
}

func New(style Style) *Annotator {
	return &Annotator{style: style}
}

// Annotate computes the markers and price lines for wave. A nil wave yields an
// empty layer, so the chart shows candles only.
//
// Markers: in an uptrend points 1 and 3 are troughs and render below the bar,
// point 2 is the peak and renders above; a downtrend mirrors this.
// Price lines: the highlighted wave-3 target first (omitted when the level is
// missing), then one line per wave-2 level in ascending ratio order.
func (a *Annotator) Annotate(wave *model.WaveAnalysis) Annotations {
	if wave == nil {
		return Annotations{}
	}

	trough, peak := BelowBar, AboveBar
	if wave.Trend == model.TrendDown {
		trough, peak = AboveBar, BelowBar
	}
	positions := [3]Position{trough, peak, trough}

	markers := make([]Marker, 0, 3)
	for i, p := range wave.Points() {
		markers = append(markers, Marker{
			Time:     p.Time.Truncate(time.Second),
			Position: positions[i],
			Color:    a.style.PointColors[i],
			Shape:    a.style.MarkerShape,
			Text:     strconv.Itoa(i + 1),
		})
	}

	lines := make([]PriceLine, 0, len(wave.Fibonacci.Wave2)+1)
	if target, ok := wave.Fibonacci.Target(); ok {
		lines = append(lines, PriceLine{
			Price:            target,
			Color:            a.style.TargetColor,
			LineWidth:        2,
			LineStyle:        LineDashed,
			AxisLabelVisible: true,
			Title:            "Target " + model.TargetLevel,
			Highlighted:      true,
		})
	}
	for _, level := range model.SortedLevels(wave.Fibonacci.Wave2) {
		lines = append(lines, PriceLine{
			Price:            wave.Fibonacci.Wave2[level],
			Color:            a.style.LevelColor,
			LineWidth:        1,
			LineStyle:        LineDashed,
			AxisLabelVisible: true,
			Title:            level,
		})
	}

	return Annotations{Markers: markers, PriceLines: lines}
}
