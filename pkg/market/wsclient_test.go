package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

type stateLog struct {
	mu     sync.Mutex
	states []ConnState
}

func (l *stateLog) record(s ConnState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) snapshot() []ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ConnState(nil), l.states...)
}

func Test_NewWSClient(t *testing.T) {
	_, err := NewWSClient(WSOptions{}, zap.NewNop())
	assert.Error(t, err)

	c, err := NewWSClient(WSOptions{URL: "ws://localhost:1/ws"}, zap.NewNop())
	require.NoError(t, err)
	opts := c.Options()
	assert.Equal(t, time.Second, opts.ReconnectMin)
	assert.Equal(t, 30*time.Second, opts.ReconnectMax)
	assert.Equal(t, 15*time.Second, opts.PingPeriod)
	assert.Equal(t, StateClosed, c.State())
}

func Test_WSClient_ReceivesAndReconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := conns.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"n":%d}`, n)))
		// drop the connection to force a reconnect
		_ = conn.Close()
	}))
	defer srv.Close()

	c, err := NewWSClient(WSOptions{
		URL:          wsURL(srv),
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	msgs := make(chan []byte, 16)
	c.SetMessageHandler(func(b []byte) {
		select {
		case msgs <- b:
		default:
		}
	})
	states := &stateLog{}
	c.SetStateHandler(states.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-msgs:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.GreaterOrEqual(t, conns.Load(), int32(2))
	seen := states.snapshot()
	require.NotEmpty(t, seen)
	assert.Equal(t, StateConnecting, seen[0])
	assert.Contains(t, seen, StateOpen)
	assert.Contains(t, seen, StateClosed)
	assert.Equal(t, StateClosed, c.State())
}

func Test_WSClient_HandshakeFailureKeepsRetrying(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "no upgrade", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewWSClient(WSOptions{
		URL:          wsURL(srv),
		ReconnectMin: 5 * time.Millisecond,
		ReconnectMax: 10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	states := &stateLog{}
	c.SetStateHandler(states.record)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = c.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Greater(t, attempts.Load(), int32(1))
	assert.NotContains(t, states.snapshot(), StateOpen)
}

func Test_WSClient_HandlerPanicDoesNotKillConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("boom"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("ok"))
		// hold the connection until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := NewWSClient(WSOptions{URL: wsURL(srv)}, zap.NewNop())
	require.NoError(t, err)

	got := make(chan string, 4)
	c.SetMessageHandler(func(b []byte) {
		if string(b) == "boom" {
			panic("handler failure")
		}
		got <- string(b)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	select {
	case msg := <-got:
		assert.Equal(t, "ok", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message after panic")
	}
	assert.Equal(t, StateOpen, c.State())
}
