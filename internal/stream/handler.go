package stream

import (
	"wavechart/internal/model"
	"wavechart/pkg/market"
	"wavechart/pkg/metrics"

	"go.uber.org/zap"
)

// MakeMessageHandler returns a function that decodes push channel frames
// and hands each market update to emit. Frames of other types are ignored;
// malformed frames are dropped with a warning.
func MakeMessageHandler(logger *zap.Logger, rec *metrics.Recorder, emit func(model.Update)) func(msg []byte) {
	return func(msg []byte) {
		update, ok, err := market.DecodePush(msg)
		if err != nil {
			rec.RecordDecodeError("push")
			logger.Warn("dropping malformed push message",
				zap.Error(err),
				zap.Int("bytes", len(msg)))
			return
		}
		if !ok {
			return // not an update frame
		}

		if missing := market.MissingTargets(update.Analyses); len(missing) > 0 {
			logger.Warn("wave analysis without target level",
				zap.String("level", model.TargetLevel),
				zap.Stringers("timeframes", missing))
		}
		emit(update)
	}
}
