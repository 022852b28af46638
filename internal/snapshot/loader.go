package snapshot

import (
	"context"
	"time"

	"wavechart/internal/model"
	"wavechart/pkg/market"

	"go.uber.org/zap"
)

// Puller is the pull side of the backend API.
type Puller interface {
	GetPrice(ctx context.Context) (*model.PriceSnapshot, error)
	GetAnalyses(ctx context.Context) ([]model.TimeframeAnalysis, error)
}

type Loader struct {
	Puller  Puller
	Timeout time.Duration
	Logger  *zap.Logger
}

// Load fetches the price and the analysis batch and combines them into one update.
// Both requests must succeed; a partial result is never returned.
func (l *Loader) Load(ctx context.Context) (model.Update, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	price, err := l.Puller.GetPrice(ctx)
	if err != nil {
		return model.Update{}, err
	}
	analyses, err := l.Puller.GetAnalyses(ctx)
	if err != nil {
		return model.Update{}, err
	}

	if missing := market.MissingTargets(analyses); len(missing) > 0 {
		l.Logger.Warn("wave analysis without target level",
			zap.String("level", model.TargetLevel),
			zap.Stringers("timeframes", missing))
	}

	return model.Update{
		Source:   model.SourcePull,
		Price:    price,
		Analyses: analyses,
	}, nil
}
