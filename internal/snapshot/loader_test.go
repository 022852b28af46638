package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"wavechart/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPuller struct {
	priceErr    error
	analysesErr error
	deadline    bool
}

func (s *stubPuller) GetPrice(ctx context.Context) (*model.PriceSnapshot, error) {
	_, s.deadline = ctx.Deadline()
	if s.priceErr != nil {
		return nil, s.priceErr
	}
	return &model.PriceSnapshot{Price: 100, Timestamp: time.Now()}, nil
}

func (s *stubPuller) GetAnalyses(ctx context.Context) ([]model.TimeframeAnalysis, error) {
	if s.analysesErr != nil {
		return nil, s.analysesErr
	}
	return []model.TimeframeAnalysis{{Timeframe: model.Timeframe1h}}, nil
}

func Test_Loader_Load(t *testing.T) {
	p := &stubPuller{}
	l := &Loader{Puller: p, Timeout: time.Second, Logger: zap.NewNop()}

	u, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SourcePull, u.Source)
	assert.NotNil(t, u.Price)
	assert.Len(t, u.Analyses, 1)
	assert.True(t, p.deadline)
}

func Test_Loader_AllOrNothing(t *testing.T) {
	fetchErr := &model.FetchError{Endpoint: "/analysis/all", StatusCode: 500, Err: errors.New("boom")}
	for name, p := range map[string]*stubPuller{
		"price fails":    {priceErr: &model.FetchError{Endpoint: "/price", Err: errors.New("refused")}},
		"analyses fails": {analysesErr: fetchErr},
	} {
		t.Run(name, func(t *testing.T) {
			l := &Loader{Puller: p, Logger: zap.NewNop()}
			u, err := l.Load(context.Background())
			var ferr *model.FetchError
			assert.True(t, errors.As(err, &ferr))
			assert.Nil(t, u.Price)
			assert.Nil(t, u.Analyses)
		})
	}
}
