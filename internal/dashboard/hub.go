package dashboard

import (
	"encoding/json"
	"sync"

	"wavechart/internal/chart"

	"go.uber.org/zap"
)

// frameMessage is the JSON frame sent to websocket subscribers.
type frameMessage struct {
	Type  string      `json:"type"`
	Frame chart.Frame `json:"frame"`
}

type subscriber struct {
	send chan []byte
}

// Hub is the chart Renderer of the dashboard. It keeps the latest frame and
// fans it out to websocket subscribers. Subscribers that cannot keep up are dropped.
type Hub struct {
	mu      sync.RWMutex
	last    chart.Frame
	hasLast bool
	subs    map[*subscriber]struct{}
	buffer  int
	logger  *zap.Logger
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 8
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Render implements chart.Renderer. Frames older than the last rendered one are ignored.
func (h *Hub) Render(f chart.Frame) {
	data, err := json.Marshal(frameMessage{Type: "frame", Frame: f})
	if err != nil {
		h.logger.Error("failed to encode chart frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasLast && f.Revision <= h.last.Revision {
		return
	}
	h.last = f
	h.hasLast = true

	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("dropping slow chart subscriber")
			delete(h.subs, sub)
			close(sub.send)
		}
	}
}

// Latest returns the last rendered frame.
func (h *Hub) Latest() (chart.Frame, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.hasLast
}

// subscribe registers a subscriber primed with the latest frame.
func (h *Hub) subscribe() *subscriber {
	sub := &subscriber{send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hasLast {
		if data, err := json.Marshal(frameMessage{Type: "frame", Frame: h.last}); err == nil {
			sub.send <- data
		}
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.send)
	}
}
