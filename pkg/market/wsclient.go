package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"wavechart/internal/model"

	"github.com/creasty/defaults"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ConnState is the push channel connection status.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("ConnState(%d)", int32(s))
}

func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WSOptions configures WSClient. Zero fields take the default tag value.
type WSOptions struct {
	URL              string
	HandshakeTimeout time.Duration `default:"10s"`
	PingPeriod       time.Duration `default:"15s"`
	WriteTimeout     time.Duration `default:"5s"`
	ReadLimit        int64         `default:"1048576"`
	ReconnectMin     time.Duration `default:"1s"`
	ReconnectMax     time.Duration `default:"30s"`
}

// WSClient keeps the push channel connected and routes frames to a handler.
// A dropped connection is re-dialed with bounded exponential backoff.
type WSClient struct {
	opts    WSOptions
	dialer  websocket.Dialer
	state   atomic.Int32
	handler func([]byte)
	onState func(ConnState)
	logger  *zap.Logger
}

// NewWSClient creates a push channel client. It does not connect until Run.
func NewWSClient(opts WSOptions, logger *zap.Logger) (*WSClient, error) {
	if opts.URL == "" {
		return nil, errors.New("websocket url is required")
	}
	if err := defaults.Set(&opts); err != nil {
		return nil, fmt.Errorf("apply websocket defaults: %w", err)
	}
	c := &WSClient{
		opts: opts,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: logger,
	}
	c.state.Store(int32(StateClosed))
	return c, nil
}

// SetMessageHandler sets the function to handle incoming messages.
// It must be called before Run.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// SetStateHandler sets the function notified on every connection state change.
// It must be called before Run.
func (c *WSClient) SetStateHandler(h func(ConnState)) {
	c.onState = h
}

// State returns the current connection state.
func (c *WSClient) State() ConnState {
	return ConnState(c.state.Load())
}

// Options returns the effective options after defaults.
func (c *WSClient) Options() WSOptions {
	return c.opts
}

// Run connects and keeps reconnecting until ctx is done. It always returns ctx.Err().
func (c *WSClient) Run(ctx context.Context) error {
	bo := NewBackoff(c.opts.ReconnectMin, c.opts.ReconnectMax)
	for {
		c.setState(StateConnecting)

		var terr *model.TransportError
		conn, err := c.dial(ctx)
		if err != nil {
			terr = &model.TransportError{Op: "dial", Err: err}
		} else {
			bo.Reset()
			c.setState(StateOpen)
			c.logger.Info("push channel connected", zap.String("url", c.opts.URL))
			if err := c.serve(ctx, conn); err != nil {
				terr = &model.TransportError{Op: "read", Err: err}
			}
		}

		c.setState(StateClosed)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := bo.Next()
		c.logger.Warn("push channel closed, reconnecting",
			zap.Error(terr),
			zap.Duration("backoff", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// serve reads frames until the connection fails or ctx is done.
func (c *WSClient) serve(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	readWait := c.opts.PingPeriod * 2
	conn.SetReadLimit(c.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pingLoop(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		// Unblocks ReadMessage on shutdown.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteTimeout))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		c.dispatch(data)
	}
}

func (c *WSClient) dispatch(data []byte) {
	if c.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in push message handler", zap.Any("recover", r))
		}
	}()
	c.handler(data)
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

func (c *WSClient) setState(s ConnState) {
	if ConnState(c.state.Swap(int32(s))) == s {
		return
	}
	if c.onState != nil {
		c.onState(s)
	}
}
