package market

// PriceResponse is the body of GET /price. The 24h statistics arrive either
// camelCased or snake_cased depending on the backend version; camelCase wins.
type PriceResponse struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price" validate:"required"`
	Timestamp string   `json:"timestamp" validate:"required"`
	Change24h *float64 `json:"change24h"`
	High24h   *float64 `json:"high24h"`
	Low24h    *float64 `json:"low24h"`
	Volume24h *float64 `json:"volume24h"`

	Change24hSnake *float64 `json:"change_24h"`
	High24hSnake   *float64 `json:"high_24h"`
	Low24hSnake    *float64 `json:"low_24h"`
	Volume24hSnake *float64 `json:"volume_24h"`
}

// AnalysisResponse is the body of GET /analysis/all.
type AnalysisResponse struct {
	Results   []TimeframeAnalysisDTO `json:"results" validate:"required,dive"`
	Summary   *SummaryDTO            `json:"summary,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// SummaryDTO is the backend's own confluence summary. It is informational only;
// the client recomputes confluence from the results.
type SummaryDTO struct {
	TotalSignals int     `json:"total_signals"`
	BuySignals   int     `json:"buy_signals"`
	SellSignals  int     `json:"sell_signals"`
	StrongSignal *string `json:"strong_signal"`
}

// CandlesResponse is the body of GET /candles/{timeframe}.
type CandlesResponse struct {
	Timeframe string      `json:"timeframe"`
	Candles   []CandleDTO `json:"candles" validate:"required,dive"`
}

// CandleDTO carries the bar open time in unix seconds.
type CandleDTO struct {
	Time   *int64   `json:"time" validate:"required"`
	Open   *float64 `json:"open" validate:"required"`
	High   *float64 `json:"high" validate:"required"`
	Low    *float64 `json:"low" validate:"required"`
	Close  *float64 `json:"close" validate:"required"`
	Volume float64  `json:"volume"`
}

// PushMessage is a frame received on the push channel.
// Only frames with Type "update" carry market data.
type PushMessage struct {
	Type      string                 `json:"type"`
	Price     *float64               `json:"price"`
	Timestamp string                 `json:"timestamp"`
	Analysis  []TimeframeAnalysisDTO `json:"analysis" validate:"omitempty,dive"`
}

// TimeframeAnalysisDTO is the wire form of one timeframe's analysis.
type TimeframeAnalysisDTO struct {
	Timeframe string     `json:"timeframe" validate:"required,oneof=15m 1h 4h 1D"`
	Wave      *WaveDTO   `json:"wave"`
	Signal    *SignalDTO `json:"signal"`
}

type WaveDTO struct {
	Trend     string        `json:"trend" validate:"required,oneof=UP DOWN"`
	Point1    *WavePointDTO `json:"point1" validate:"required"`
	Point2    *WavePointDTO `json:"point2" validate:"required"`
	Point3    *WavePointDTO `json:"point3" validate:"required"`
	Fibonacci *FibonacciDTO `json:"fibonacci" validate:"required"`
}

type WavePointDTO struct {
	Price *float64 `json:"price" validate:"required"`
	Time  string   `json:"time" validate:"required"`
}

type FibonacciDTO struct {
	Wave2Levels map[string]float64 `json:"wave2Levels" validate:"required"`
	Wave3Levels map[string]float64 `json:"wave3Levels" validate:"required"`
}

// SignalDTO is nullable on the action: the backend sends a signal object with a
// null or empty action when the timeframe has a wave but no entry.
type SignalDTO struct {
	Action     string   `json:"action" validate:"omitempty,oneof=BUY SELL"`
	Timeframe  string   `json:"timeframe"`
	Reason     string   `json:"reason"`
	Target     *float64 `json:"target" validate:"required_with=Action"`
	Stop       *float64 `json:"stop" validate:"required_with=Action"`
	RiskReward *float64 `json:"riskReward"`
}
