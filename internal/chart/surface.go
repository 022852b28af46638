// Package chart owns the rendered chart state: the candle series of the
// selected timeframe, the annotation layer and the chart dimensions.
package chart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wavechart/internal/annotate"
	"wavechart/internal/model"
	"wavechart/pkg/metrics"

	"go.uber.org/zap"
)

// CandleFetcher loads the candle series of a timeframe.
type CandleFetcher interface {
	GetCandles(ctx context.Context, tf model.Timeframe, limit int) ([]model.Candle, error)
}

// Renderer draws frames. Render is called with the surface lock released,
// once per state change, and must not block for long.
type Renderer interface {
	Render(f Frame)
}

// Frame is an immutable snapshot of everything on the chart.
type Frame struct {
	Timeframe   model.Timeframe      `json:"timeframe"`
	Candles     []model.Candle       `json:"candles"`
	Annotations annotate.Annotations `json:"annotations"`
	Width       int                  `json:"width"`
	Height      int                  `json:"height"`
	Loading     bool                 `json:"loading"`
	Stale       bool                 `json:"stale"`
	Revision    uint64               `json:"revision"`
}

type Options struct {
	CandleLimit  int
	FetchTimeout time.Duration
	Width        int
	Height       int
}

type Surface struct {
	fetcher  CandleFetcher
	renderer Renderer
	opts     Options
	logger   *zap.Logger
	rec      *metrics.Recorder

	mu          sync.Mutex
	timeframe   model.Timeframe
	generation  uint64
	cancelFetch context.CancelFunc
	candles     []model.Candle
	annotations annotate.Annotations
	width       int
	height      int
	loading     bool
	stale       bool
	revision    uint64
	closed      bool

	wg sync.WaitGroup
}

func New(fetcher CandleFetcher, renderer Renderer, opts Options, logger *zap.Logger, rec *metrics.Recorder) *Surface {
	if opts.CandleLimit <= 0 {
		opts.CandleLimit = 200
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Surface{
		fetcher:  fetcher,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		rec:      rec,
		width:    opts.Width,
		height:   opts.Height,
	}
}

// SelectTimeframe switches the chart to tf and starts loading its candles.
// An in-flight fetch for the previous selection is cancelled, and its result
// is discarded if it still arrives.
func (s *Surface) SelectTimeframe(ctx context.Context, tf model.Timeframe) error {
	if !tf.IsValid() {
		return fmt.Errorf("select timeframe: invalid timeframe %q", tf)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("select timeframe: surface closed")
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.generation++
	gen := s.generation
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	s.cancelFetch = cancel
	if s.timeframe != tf {
		// Candles of another timeframe must not stay on screen.
		s.candles = nil
		s.annotations = annotate.Annotations{}
	}
	s.timeframe = tf
	s.loading = true
	s.wg.Add(1)
	frame := s.frameLocked()
	s.mu.Unlock()

	s.render(frame)

	go func() {
		defer s.wg.Done()
		defer cancel()
		s.fetch(fetchCtx, tf, gen)
	}()
	return nil
}

// Reload refetches the candles of the current timeframe.
func (s *Surface) Reload(ctx context.Context) error {
	s.mu.Lock()
	tf := s.timeframe
	s.mu.Unlock()
	if tf == "" {
		return errors.New("reload: no timeframe selected")
	}
	return s.SelectTimeframe(ctx, tf)
}

func (s *Surface) fetch(ctx context.Context, tf model.Timeframe, gen uint64) {
	start := time.Now()
	candles, err := s.fetcher.GetCandles(ctx, tf, s.opts.CandleLimit)
	s.rec.RecordCandleFetch(string(tf), time.Since(start).Seconds())

	s.mu.Lock()
	if gen != s.generation || tf != s.timeframe {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded candle fetch",
			zap.Stringer("timeframe", tf),
			zap.Error(err))
		return
	}
	s.mu.Unlock()

	if err != nil {
		s.rec.RecordFetchError("candles")
		s.logger.Warn("candle fetch failed, keeping last series",
			zap.Stringer("timeframe", tf),
			zap.Error(err))
		s.mu.Lock()
		if gen == s.generation {
			s.loading = false
			s.stale = true
			frame := s.frameLocked()
			s.mu.Unlock()
			s.render(frame)
			return
		}
		s.mu.Unlock()
		return
	}

	if err := s.replaceAll(tf, candles, gen); err != nil {
		s.logger.Warn("rejecting candle series", zap.Stringer("timeframe", tf), zap.Error(err))
	}
}

// ReplaceAll replaces the whole candle series of tf. tf must be the selected timeframe.
func (s *Surface) ReplaceAll(tf model.Timeframe, candles []model.Candle) error {
	return s.replaceAll(tf, candles, 0)
}

// replaceAll applies candles unless gen is non-zero and no longer current.
func (s *Surface) replaceAll(tf model.Timeframe, candles []model.Candle, gen uint64) error {
	if err := validateSeries(candles); err != nil {
		return err
	}
	cp := make([]model.Candle, len(candles))
	copy(cp, candles)

	s.mu.Lock()
	if tf != s.timeframe {
		s.mu.Unlock()
		return fmt.Errorf("replace candles: %s is not the selected timeframe %s", tf, s.timeframe)
	}
	if gen != 0 && gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.candles = cp
	s.loading = false
	s.stale = false
	frame := s.frameLocked()
	s.mu.Unlock()

	s.render(frame)
	return nil
}

// ReplaceAnnotations replaces the annotation layer wholesale.
func (s *Surface) ReplaceAnnotations(a annotate.Annotations) {
	s.mu.Lock()
	s.annotations = cloneAnnotations(a)
	frame := s.frameLocked()
	s.mu.Unlock()

	s.render(frame)
}

// Resize changes the chart dimensions. Candles and annotations are kept.
func (s *Surface) Resize(width, height int) {
	s.mu.Lock()
	if width > 0 {
		s.width = width
	}
	if height > 0 {
		s.height = height
	}
	frame := s.frameLocked()
	s.mu.Unlock()

	s.render(frame)
}

// Timeframe returns the selected timeframe.
func (s *Surface) Timeframe() model.Timeframe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeframe
}

// Frame returns the current chart snapshot.
func (s *Surface) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

// Close cancels any in-flight fetch and waits for it to return.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.generation++
	s.mu.Unlock()

	s.wg.Wait()
}

// frameLocked must be called with s.mu held. It bumps the revision.
func (s *Surface) frameLocked() Frame {
	s.revision++
	candles := make([]model.Candle, len(s.candles))
	copy(candles, s.candles)
	return Frame{
		Timeframe:   s.timeframe,
		Candles:     candles,
		Annotations: cloneAnnotations(s.annotations),
		Width:       s.width,
		Height:      s.height,
		Loading:     s.loading,
		Stale:       s.stale,
		Revision:    s.revision,
	}
}

func (s *Surface) render(f Frame) {
	if s.renderer != nil {
		s.renderer.Render(f)
	}
}

func validateSeries(candles []model.Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			return fmt.Errorf("candle %d at %s does not follow %s",
				i, candles[i].Time.Format(time.RFC3339), candles[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

func cloneAnnotations(a annotate.Annotations) annotate.Annotations {
	out := annotate.Annotations{
		Markers:    make([]annotate.Marker, len(a.Markers)),
		PriceLines: make([]annotate.PriceLine, len(a.PriceLines)),
	}
	copy(out.Markers, a.Markers)
	copy(out.PriceLines, a.PriceLines)
	return out
}
