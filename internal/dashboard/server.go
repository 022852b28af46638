// Package dashboard serves the chart and the market read views to browsers.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wavechart/internal/confluence"
	"wavechart/internal/marketstore"
	"wavechart/internal/model"
	"wavechart/internal/updater"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var validate = validator.New()

// Controller is the view-side control surface of the app.
type Controller interface {
	SelectTimeframe(tf model.Timeframe) error
	Resize(width, height int)
	Health() updater.Health
}

// APIResponse is the JSON envelope of every API reply.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type timeframeRequest struct {
	Timeframe string `json:"timeframe" validate:"required,oneof=15m 1h 4h 1D"`
}

type sizeRequest struct {
	Width  int `json:"width" default:"1200" validate:"gte=100,lte=8000"`
	Height int `json:"height" default:"600" validate:"gte=100,lte=4000"`
}

type statusResponse struct {
	updater.Health
	Timeframe    model.Timeframe `json:"timeframe"`
	ChartStale   bool            `json:"chartStale"`
	StoreVersion uint64          `json:"storeVersion"`
}

type Server struct {
	echo     *echo.Echo
	addr     string
	store    *marketstore.MarketDataStore
	hub      *Hub
	ctrl     Controller
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer builds the dashboard server. gatherer backs /metrics; nil disables it.
func NewServer(addr string, store *marketstore.MarketDataStore, hub *Hub, ctrl Controller,
	gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:  e,
		addr:  addr,
		store: store,
		hub:   hub,
		ctrl:  ctrl,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	g := e.Group("/api")
	g.GET("/price", s.price)
	g.GET("/analysis", s.analyses)
	g.GET("/analysis/:timeframe", s.analysis)
	g.GET("/confluence", s.confluence)
	g.GET("/chart", s.chart)
	g.GET("/status", s.status)
	g.PUT("/timeframe", s.selectTimeframe)
	g.PUT("/chart/size", s.resize)
	e.GET("/ws", s.stream)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.addr))
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard server: %w", err)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return nil
}

func (s *Server) price(c echo.Context) error {
	p, err := s.store.CurrentPrice()
	if err != nil {
		return storeError(c, err)
	}
	return success(c, p)
}

func (s *Server) analyses(c echo.Context) error {
	as, err := s.store.Analyses()
	if err != nil {
		return storeError(c, err)
	}
	return success(c, as)
}

func (s *Server) analysis(c echo.Context) error {
	tf, err := model.ParseTimeframe(c.Param("timeframe"))
	if err != nil {
		return respond(c, http.StatusBadRequest, err.Error())
	}
	a, err := s.store.AnalysisFor(tf)
	if err != nil {
		return storeError(c, err)
	}
	return success(c, a)
}

func (s *Server) confluence(c echo.Context) error {
	as, err := s.store.Analyses()
	if err != nil {
		return storeError(c, err)
	}
	return success(c, map[string]interface{}{
		"summary": confluence.Summarize(as),
		"signals": confluence.ActiveSignals(as),
	})
}

func (s *Server) chart(c echo.Context) error {
	f, ok := s.hub.Latest()
	if !ok {
		return respond(c, http.StatusServiceUnavailable, "chart not rendered yet")
	}
	return success(c, f)
}

func (s *Server) status(c echo.Context) error {
	resp := statusResponse{
		Health:       s.ctrl.Health(),
		StoreVersion: s.store.Version(),
	}
	if f, ok := s.hub.Latest(); ok {
		resp.Timeframe = f.Timeframe
		resp.ChartStale = f.Stale
	}
	return success(c, resp)
}

func (s *Server) selectTimeframe(c echo.Context) error {
	req := &timeframeRequest{}
	if err := bindAndValidate(c, req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error())
	}
	if err := s.ctrl.SelectTimeframe(model.Timeframe(req.Timeframe)); err != nil {
		return respond(c, http.StatusServiceUnavailable, err.Error())
	}
	return respond(c, http.StatusAccepted, req)
}

func (s *Server) resize(c echo.Context) error {
	req := &sizeRequest{}
	if err := bindAndValidate(c, req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error())
	}
	s.ctrl.Resize(req.Width, req.Height)
	return respond(c, http.StatusAccepted, req)
}

// stream upgrades to a websocket and pushes every rendered frame.
func (s *Server) stream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	sub := s.hub.subscribe()
	defer s.hub.unsubscribe(sub)

	// Reader goroutine only detects the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return nil
		case data, ok := <-sub.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}
		}
	}
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("bind request: %w", err)
	}
	if err := defaults.Set(req); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return err
	}
	return nil
}

func success(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func storeError(c echo.Context, err error) error {
	if errors.Is(err, model.ErrNotReady) {
		return respond(c, http.StatusServiceUnavailable, err.Error())
	}
	return respond(c, http.StatusNotFound, err.Error())
}
