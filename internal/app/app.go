// Package app wires the update client, the store, the annotator and the chart
// surface together and runs the single event loop that connects them.
package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"wavechart/config"
	"wavechart/internal/annotate"
	"wavechart/internal/chart"
	"wavechart/internal/confluence"
	"wavechart/internal/dashboard"
	"wavechart/internal/marketstore"
	"wavechart/internal/model"
	"wavechart/internal/updater"
	"wavechart/pkg/market"
	"wavechart/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// ErrStopped is returned by SelectTimeframe after Run has returned.
var ErrStopped = errors.New("app stopped")

const statsInterval = time.Minute

// Updates is the event source the loop consumes.
type Updates interface {
	Start(ctx context.Context) error
	Events() <-chan model.Update
	Health() updater.Health
	Stop()
}

// Surface is the chart the loop draws into.
type Surface interface {
	SelectTimeframe(ctx context.Context, tf model.Timeframe) error
	ReplaceAnnotations(a annotate.Annotations)
	Resize(width, height int)
	Timeframe() model.Timeframe
	Close()
}

// Server serves the dashboard until ctx is done.
type Server interface {
	Run(ctx context.Context) error
}

type App struct {
	logger    *zap.Logger
	rec       *metrics.Recorder
	updates   Updates
	store     *marketstore.MarketDataStore
	annotator *annotate.Annotator
	surface   Surface
	server    Server
	initialTF model.Timeframe

	selectCh chan model.Timeframe
	done     chan struct{}

	// loop-owned
	confluence    confluence.Result
	hasConfluence bool
	annotated     annotationKey
}

// annotationKey memoizes the input of the current annotation layer.
type annotationKey struct {
	valid     bool
	timeframe model.Timeframe
	wave      *model.WaveAnalysis
}

// New builds every component from cfg. Nothing connects until Run.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	initialTF, err := model.ParseTimeframe(cfg.Chart.DefaultTimeframe)
	if err != nil {
		return nil, fmt.Errorf("chart.default_timeframe: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.New(reg)

	rest := market.NewRESTClient(cfg.API.BaseURL, cfg.API.Timeout)
	ws, err := market.NewWSClient(market.WSOptions{
		URL:              cfg.WS.URL,
		HandshakeTimeout: cfg.WS.HandshakeTimeout,
		PingPeriod:       cfg.WS.PingPeriod,
		ReconnectMin:     cfg.WS.ReconnectMin,
		ReconnectMax:     cfg.WS.ReconnectMax,
	}, logger.Named("push"))
	if err != nil {
		return nil, fmt.Errorf("create push channel: %w", err)
	}

	client := updater.New(updater.Config{
		PollInterval: cfg.Poll.Interval,
		PollTimeout:  cfg.Poll.Timeout,
	}, ws, rest, logger.Named("updater"), rec)

	store := marketstore.New(model.Timeframes())
	hub := dashboard.NewHub(0, logger.Named("hub"))
	surface := chart.New(rest, hub, chart.Options{
		CandleLimit:  cfg.Chart.CandleLimit,
		FetchTimeout: cfg.Chart.FetchTimeout,
		Width:        cfg.Chart.Width,
		Height:       cfg.Chart.Height,
	}, logger.Named("chart"), rec)

	a := newApp(client, store, surface, initialTF, logger, rec)
	a.server = dashboard.NewServer(cfg.Dashboard.Addr, store, hub, a, reg, logger.Named("dashboard"))
	return a, nil
}

func newApp(updates Updates, store *marketstore.MarketDataStore, surface Surface,
	initialTF model.Timeframe, logger *zap.Logger, rec *metrics.Recorder) *App {
	return &App{
		logger:    logger,
		rec:       rec,
		updates:   updates,
		store:     store,
		annotator: annotate.New(annotate.DefaultStyle()),
		surface:   surface,
		initialTF: initialTF,
		selectCh:  make(chan model.Timeframe, 4),
		done:      make(chan struct{}),
	}
}

// Store exposes the market snapshot for read-only views.
func (a *App) Store() *marketstore.MarketDataStore {
	return a.store
}

// SelectTimeframe asks the loop to switch the chart to tf.
func (a *App) SelectTimeframe(tf model.Timeframe) error {
	if !tf.IsValid() {
		return fmt.Errorf("select timeframe: invalid timeframe %q", tf)
	}
	select {
	case <-a.done:
		return ErrStopped
	default:
	}
	select {
	case a.selectCh <- tf:
		return nil
	case <-a.done:
		return ErrStopped
	}
}

// Resize changes the chart dimensions.
func (a *App) Resize(width, height int) {
	a.surface.Resize(width, height)
}

// Health reports the update channels' health.
func (a *App) Health() updater.Health {
	return a.updates.Health()
}

// Run starts every component and blocks in the event loop until ctx is done.
// The update client, the chart surface and the dashboard are torn down together.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.updates.Start(ctx); err != nil {
		close(a.done)
		return fmt.Errorf("start updates: %w", err)
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.Run(ctx) }()
	} else {
		close(serverErr)
	}

	a.selectTimeframe(ctx, a.initialTF)
	err := a.loop(ctx, serverErr)

	cancel()
	close(a.done)
	a.updates.Stop()
	a.surface.Close()
	if a.server != nil && err == nil {
		err = <-serverErr
	}

	a.logger.Info("app stopped")
	return err
}

func (a *App) loop(ctx context.Context, serverErr <-chan error) error {
	events := a.updates.Events()
	stats := time.NewTicker(statsInterval)
	defer stats.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-serverErr:
			if !ok {
				serverErr = nil
				continue
			}
			if err == nil {
				err = errors.New("dashboard server exited")
			}
			return err

		case u, ok := <-events:
			if !ok {
				return nil
			}
			a.handleUpdate(u)

		case tf := <-a.selectCh:
			a.selectTimeframe(ctx, tf)

		case <-stats.C:
			h := a.updates.Health()
			a.logger.Info("status",
				zap.Stringer("push", h.Status),
				zap.Bool("stale", h.Stale),
				zap.Uint64("storeVersion", a.store.Version()),
				zap.Stringer("timeframe", a.surface.Timeframe()))
		}
	}
}

func (a *App) handleUpdate(u model.Update) {
	if err := a.store.Apply(u); err != nil {
		reason := rejectReason(err)
		a.rec.RecordRejected(reason)
		if reason == "stale" {
			a.logger.Debug("ignoring older update", zap.String("source", string(u.Source)), zap.Error(err))
			return
		}
		a.logger.Warn("rejected update, keeping last snapshot",
			zap.String("source", string(u.Source)),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}

	view, err := a.store.View()
	if err != nil {
		return
	}
	a.rec.RecordApplied(string(view.Source), view.Price.Price)
	a.updateConfluence(view.Analyses)
	a.refreshAnnotations()
}

func (a *App) updateConfluence(analyses []model.TimeframeAnalysis) {
	summary := confluence.Summarize(analyses)
	a.rec.RecordConfluence(summary.Buy, summary.Sell)

	res := confluence.Aggregate(analyses)
	if a.hasConfluence && res == a.confluence {
		return
	}
	a.confluence, a.hasConfluence = res, true

	if res.Found() {
		a.logger.Info("confluence alert",
			zap.String("action", string(res.Action)),
			zap.Int("timeframes", res.Count))
	} else {
		a.logger.Info("no confluence",
			zap.Int("buy", summary.Buy),
			zap.Int("sell", summary.Sell))
	}
}

func (a *App) selectTimeframe(ctx context.Context, tf model.Timeframe) {
	if err := a.surface.SelectTimeframe(ctx, tf); err != nil {
		a.logger.Warn("failed to select timeframe", zap.Stringer("timeframe", tf), zap.Error(err))
		return
	}
	a.refreshAnnotations()
}

// refreshAnnotations re-annotates only when the selected timeframe or its wave changed.
func (a *App) refreshAnnotations() {
	tf := a.surface.Timeframe()
	var wave *model.WaveAnalysis
	if an, err := a.store.AnalysisFor(tf); err == nil {
		wave = an.Wave
	}

	key := annotationKey{valid: true, timeframe: tf, wave: wave}
	if a.annotated.valid && a.annotated.timeframe == tf && reflect.DeepEqual(a.annotated.wave, wave) {
		return
	}
	a.annotated = key
	a.surface.ReplaceAnnotations(a.annotator.Annotate(wave))
}

func rejectReason(err error) string {
	var inconsistent *model.InconsistentSnapshotError
	switch {
	case errors.Is(err, model.ErrStaleUpdate):
		return "stale"
	case errors.As(err, &inconsistent):
		return "inconsistent"
	default:
		return "invalid"
	}
}
