package confluence

import "wavechart/internal/model"

// Threshold is the number of timeframes that must agree on an action.
const Threshold = 2

// Result is a confluence verdict. The zero value means no confluence.
type Result struct {
	Action model.Action `json:"action,omitempty"`
	Count  int          `json:"count"`
}

// Found reports whether a confluence was reached.
func (r Result) Found() bool {
	return r.Action != ""
}

// Summary is the signal tally over one analysis batch.
type Summary struct {
	Total  int     `json:"total"`
	Buy    int     `json:"buy"`
	Sell   int     `json:"sell"`
	Strong *Result `json:"strong,omitempty"`
}

// Aggregate derives the confluence verdict of a batch.
// BUY is checked first, so when both sides reach Threshold the result is BUY.
func Aggregate(analyses []model.TimeframeAnalysis) Result {
	buy, sell := count(analyses)
	return verdict(buy, sell)
}

// Summarize tallies the active signals of a batch and includes the verdict.
func Summarize(analyses []model.TimeframeAnalysis) Summary {
	buy, sell := count(analyses)
	s := Summary{Total: buy + sell, Buy: buy, Sell: sell}
	if r := verdict(buy, sell); r.Found() {
		s.Strong = &r
	}
	return s
}

// ActiveSignals returns the signals that carry an action, in batch order.
func ActiveSignals(analyses []model.TimeframeAnalysis) []model.Signal {
	var out []model.Signal
	for _, a := range analyses {
		if a.Signal == nil || a.Signal.Action == "" {
			continue
		}
		out = append(out, *a.Signal.Clone())
	}
	return out
}

func count(analyses []model.TimeframeAnalysis) (buy, sell int) {
	for _, a := range analyses {
		if a.Signal == nil {
			continue
		}
		switch a.Signal.Action {
		case model.ActionBuy:
			buy++
		case model.ActionSell:
			sell++
		}
	}
	return buy, sell
}

func verdict(buy, sell int) Result {
	if buy >= Threshold {
		return Result{Action: model.ActionBuy, Count: buy}
	}
	if sell >= Threshold {
		return Result{Action: model.ActionSell, Count: sell}
	}
	return Result{}
}
