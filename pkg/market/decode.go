package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wavechart/internal/model"

	"github.com/go-playground/validator/v10"
)

// MessageTypeUpdate is the only push frame type that carries market data.
const MessageTypeUpdate = "update"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// timeLayouts lists accepted timestamp formats. Zone-less layouts are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTime parses a wire timestamp.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// DecodePrice decodes and validates a GET /price body.
func DecodePrice(data []byte) (*model.PriceSnapshot, error) {
	var resp PriceResponse
	if err := decodeAndValidate(data, &resp); err != nil {
		return nil, &model.DecodeError{Payload: "price", Err: err}
	}
	ts, err := ParseTime(resp.Timestamp)
	if err != nil {
		return nil, &model.DecodeError{Payload: "price", Err: err}
	}
	return &model.PriceSnapshot{
		Price:     *resp.Price,
		Timestamp: ts,
		Change24h: firstOf(resp.Change24h, resp.Change24hSnake),
		High24h:   firstOf(resp.High24h, resp.High24hSnake),
		Low24h:    firstOf(resp.Low24h, resp.Low24hSnake),
		Volume24h: firstOf(resp.Volume24h, resp.Volume24hSnake),
	}, nil
}

func firstOf(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

// DecodeAnalysis decodes and validates a GET /analysis/all body.
func DecodeAnalysis(data []byte) ([]model.TimeframeAnalysis, error) {
	var resp AnalysisResponse
	if err := decodeAndValidate(data, &resp); err != nil {
		return nil, &model.DecodeError{Payload: "analysis", Err: err}
	}
	out, err := toAnalyses(resp.Results)
	if err != nil {
		return nil, &model.DecodeError{Payload: "analysis", Err: err}
	}
	return out, nil
}

// DecodeCandles decodes and validates a GET /candles/{timeframe} body.
func DecodeCandles(data []byte) ([]model.Candle, error) {
	var resp CandlesResponse
	if err := decodeAndValidate(data, &resp); err != nil {
		return nil, &model.DecodeError{Payload: "candles", Err: err}
	}
	out := make([]model.Candle, 0, len(resp.Candles))
	for _, c := range resp.Candles {
		out = append(out, model.Candle{
			Time:   time.Unix(*c.Time, 0).UTC(),
			Open:   *c.Open,
			High:   *c.High,
			Low:    *c.Low,
			Close:  *c.Close,
			Volume: c.Volume,
		})
	}
	return out, nil
}

// DecodePush decodes a push channel frame. ok is false for frames of any type
// other than "update", which callers ignore. A frame missing its price or its
// analysis field decodes into a partial Update; the store rejects those.
func DecodePush(data []byte) (update model.Update, ok bool, err error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.Update{}, false, &model.DecodeError{Payload: "push", Err: err}
	}
	if meta.Type != MessageTypeUpdate {
		return model.Update{}, false, nil
	}

	var msg PushMessage
	if err := decodeAndValidate(data, &msg); err != nil {
		return model.Update{}, false, &model.DecodeError{Payload: "push", Err: err}
	}

	update = model.Update{Source: model.SourcePush}
	if msg.Price != nil {
		ts, err := ParseTime(msg.Timestamp)
		if err != nil {
			return model.Update{}, false, &model.DecodeError{Payload: "push", Err: err}
		}
		update.Price = &model.PriceSnapshot{Price: *msg.Price, Timestamp: ts}
	}
	if msg.Analysis != nil {
		analyses, err := toAnalyses(msg.Analysis)
		if err != nil {
			return model.Update{}, false, &model.DecodeError{Payload: "push", Err: err}
		}
		update.Analyses = analyses
	}
	return update, true, nil
}

// MissingTargets lists timeframes whose wave lacks the wave-3 target level.
func MissingTargets(analyses []model.TimeframeAnalysis) []model.Timeframe {
	var out []model.Timeframe
	for _, a := range analyses {
		if a.Wave == nil {
			continue
		}
		if _, ok := a.Wave.Fibonacci.Target(); !ok {
			out = append(out, a.Timeframe)
		}
	}
	return out
}

func decodeAndValidate(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}

func toAnalyses(in []TimeframeAnalysisDTO) ([]model.TimeframeAnalysis, error) {
	out := make([]model.TimeframeAnalysis, 0, len(in))
	for _, dto := range in {
		a, err := toAnalysis(dto)
		if err != nil {
			return nil, fmt.Errorf("timeframe %s: %w", dto.Timeframe, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func toAnalysis(dto TimeframeAnalysisDTO) (model.TimeframeAnalysis, error) {
	tf, err := model.ParseTimeframe(dto.Timeframe)
	if err != nil {
		return model.TimeframeAnalysis{}, err
	}
	out := model.TimeframeAnalysis{Timeframe: tf}

	if dto.Wave != nil {
		wave, err := toWave(dto.Wave)
		if err != nil {
			return model.TimeframeAnalysis{}, err
		}
		out.Wave = wave
	}

	// A signal object with no action means "no signal".
	if s := dto.Signal; s != nil && s.Action != "" {
		out.Signal = &model.Signal{
			Action:    model.Action(s.Action),
			Timeframe: tf,
			Reason:    s.Reason,
			Target:    *s.Target,
			Stop:      *s.Stop,
		}
		if s.RiskReward != nil {
			rr := *s.RiskReward
			out.Signal.RiskReward = &rr
		}
	}
	return out, nil
}

func toWave(dto *WaveDTO) (*model.WaveAnalysis, error) {
	var points [3]model.WavePoint
	for i, p := range []*WavePointDTO{dto.Point1, dto.Point2, dto.Point3} {
		t, err := ParseTime(p.Time)
		if err != nil {
			return nil, fmt.Errorf("point%d: %w", i+1, err)
		}
		points[i] = model.WavePoint{Price: *p.Price, Time: t}
	}
	return &model.WaveAnalysis{
		Trend:  model.Trend(dto.Trend),
		Point1: points[0],
		Point2: points[1],
		Point3: points[2],
		Fibonacci: model.FibonacciLevels{
			Wave2: dto.Fibonacci.Wave2Levels,
			Wave3: dto.Fibonacci.Wave3Levels,
		},
	}, nil
}
