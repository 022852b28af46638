// Package updater keeps local market state fresh from two channels: a push
// websocket for live updates and a timed pull of the REST endpoints that runs
// while the push channel is down. Both channels emit the same model.Update.
package updater

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"wavechart/internal/model"
	"wavechart/internal/snapshot"
	"wavechart/internal/stream"
	"wavechart/pkg/market"
	"wavechart/pkg/metrics"

	"go.uber.org/zap"
)

// Status is the push channel connection status.
type Status = market.ConnState

// ErrAlreadyStarted is returned by Start on a client that was started or stopped before.
var ErrAlreadyStarted = errors.New("update client already started")

// PushChannel is a self-reconnecting push connection.
type PushChannel interface {
	SetMessageHandler(h func([]byte))
	SetStateHandler(h func(market.ConnState))
	Run(ctx context.Context) error
}

type Config struct {
	// PollInterval is the fallback pull period while the push channel is not open.
	PollInterval time.Duration
	// PollTimeout bounds one pull (price + analyses).
	PollTimeout time.Duration
	// Buffer is the capacity of the events channel.
	Buffer int
}

// Health summarizes channel state for a staleness indicator.
type Health struct {
	Status      Status    `json:"status"`
	Stale       bool      `json:"stale"`
	LastError   string    `json:"lastError,omitempty"`
	LastEventAt time.Time `json:"lastEventAt"`
	LastPullAt  time.Time `json:"lastPullAt"`
}

type Client struct {
	cfg    Config
	push   PushChannel
	loader *snapshot.Loader
	logger *zap.Logger
	rec    *metrics.Recorder

	events chan model.Update
	status atomic.Int32

	mu          sync.Mutex
	pullFailed  bool
	lastError   string
	lastEventAt time.Time
	lastPullAt  time.Time

	started  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// New creates a client. Nothing runs until Start.
func New(cfg Config, push PushChannel, puller snapshot.Puller, logger *zap.Logger, rec *metrics.Recorder) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	c := &Client{
		cfg:  cfg,
		push: push,
		loader: &snapshot.Loader{
			Puller:  puller,
			Timeout: cfg.PollTimeout,
			Logger:  logger,
		},
		logger: logger,
		rec:    rec,
		events: make(chan model.Update, cfg.Buffer),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	c.status.Store(int32(market.StateConnecting))
	return c
}

// Events returns the update stream. It is closed after Stop and cannot be restarted.
func (c *Client) Events() <-chan model.Update {
	return c.events
}

// Status returns the current push channel status.
func (c *Client) Status() Status {
	return Status(c.status.Load())
}

// Health reports channel status and whether the data shown may be stale.
// Data is stale when the last pull failed, or when the push channel is not
// open and nothing arrived for two poll intervals.
func (c *Client) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := Health{
		Status:      c.Status(),
		LastError:   c.lastError,
		LastEventAt: c.lastEventAt,
		LastPullAt:  c.lastPullAt,
	}
	h.Stale = c.pullFailed
	if h.Status != market.StateOpen && c.now().Sub(c.lastEventAt) > 2*c.cfg.PollInterval {
		h.Stale = true
	}
	return h
}

// Start launches the push channel and the fallback poller.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.push.SetMessageHandler(stream.MakeMessageHandler(c.logger, c.rec, c.emit))
	c.push.SetStateHandler(c.onState)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		_ = c.push.Run(c.ctx)
	}()
	go func() {
		defer c.wg.Done()
		c.pollLoop(c.ctx)
	}()
	go func() {
		c.wg.Wait()
		close(c.events)
		close(c.done)
	}()

	c.logger.Info("update client started", zap.Duration("pollInterval", c.cfg.PollInterval))
	return nil
}

// Stop tears down the push channel and the poller together and closes Events.
// It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		if c.started.CompareAndSwap(false, true) {
			// never started
			close(c.events)
			close(c.done)
			return
		}
		c.cancel()
		<-c.done
		c.logger.Info("update client stopped")
	})
}

func (c *Client) onState(s market.ConnState) {
	c.status.Store(int32(s))
	c.rec.RecordConnState(int(s))
	c.logger.Debug("push channel state", zap.Stringer("status", s))
}

func (c *Client) pollLoop(ctx context.Context) {
	// Bootstrap so the store is populated before the first push frame.
	c.pull(ctx)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Status() == market.StateOpen {
				continue
			}
			c.pull(ctx)
		}
	}
}

func (c *Client) pull(ctx context.Context) {
	update, err := c.loader.Load(ctx)

	c.mu.Lock()
	c.lastPullAt = c.now()
	c.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		var derr *model.DecodeError
		var ferr *model.FetchError
		switch {
		case errors.As(err, &derr):
			c.rec.RecordDecodeError("pull")
		case errors.As(err, &ferr):
			c.rec.RecordFetchError(ferr.Kind())
		default:
			c.rec.RecordFetchError("unknown")
		}
		c.mu.Lock()
		c.pullFailed = true
		c.lastError = err.Error()
		c.mu.Unlock()
		c.logger.Warn("fallback pull failed, keeping last known state", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.pullFailed = false
	c.mu.Unlock()
	c.emit(update)
}

func (c *Client) emit(u model.Update) {
	c.mu.Lock()
	c.lastEventAt = c.now()
	c.mu.Unlock()

	select {
	case c.events <- u:
	case <-c.ctx.Done():
	}
}
