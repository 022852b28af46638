package confluence

import (
	"testing"

	"wavechart/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(actions ...model.Action) []model.TimeframeAnalysis {
	tfs := []model.Timeframe{model.Timeframe15m, model.Timeframe1h, model.Timeframe4h, model.Timeframe1D, "1W"}
	out := make([]model.TimeframeAnalysis, 0, len(actions))
	for i, act := range actions {
		a := model.TimeframeAnalysis{Timeframe: tfs[i]}
		if act != "" {
			a.Signal = &model.Signal{Action: act, Timeframe: tfs[i], Target: 110, Stop: 90}
		}
		out = append(out, a)
	}
	return out
}

func Test_Aggregate(t *testing.T) {
	tests := []struct {
		name    string
		actions []model.Action
		want    Result
	}{
		{
			name:    "two buys win",
			actions: []model.Action{model.ActionBuy, model.ActionBuy, model.ActionSell, "", ""},
			want:    Result{Action: model.ActionBuy, Count: 2},
		},
		{
			name:    "three sells",
			actions: []model.Action{model.ActionSell, model.ActionSell, model.ActionSell, model.ActionBuy, ""},
			want:    Result{Action: model.ActionSell, Count: 3},
		},
		{
			name:    "no side reaches threshold",
			actions: []model.Action{model.ActionBuy, model.ActionSell, "", "", ""},
			want:    Result{},
		},
		{
			name:    "tie goes to buy",
			actions: []model.Action{model.ActionBuy, model.ActionBuy, model.ActionSell, model.ActionSell},
			want:    Result{Action: model.ActionBuy, Count: 2},
		},
		{
			name:    "no signals",
			actions: []model.Action{"", "", "", ""},
			want:    Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(batch(tt.actions...))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Action != "", got.Found())
		})
	}
}

func Test_Aggregate_Empty(t *testing.T) {
	assert.False(t, Aggregate(nil).Found())
}

func Test_Summarize(t *testing.T) {
	s := Summarize(batch(model.ActionSell, model.ActionSell, model.ActionBuy, ""))
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Buy)
	assert.Equal(t, 2, s.Sell)
	require.NotNil(t, s.Strong)
	assert.Equal(t, Result{Action: model.ActionSell, Count: 2}, *s.Strong)

	assert.Nil(t, Summarize(batch(model.ActionBuy, "")).Strong)
}

func Test_ActiveSignals(t *testing.T) {
	in := batch("", model.ActionBuy, "", model.ActionSell)
	got := ActiveSignals(in)
	require.Len(t, got, 2)
	assert.Equal(t, model.Timeframe1h, got[0].Timeframe)
	assert.Equal(t, model.Timeframe1D, got[1].Timeframe)

	// copies, not aliases
	got[0].Target = 0
	assert.Equal(t, 110.0, in[1].Signal.Target)
}
