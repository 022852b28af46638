package dashboard

import (
	"encoding/json"
	"testing"

	"wavechart/internal/chart"
	"wavechart/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeFrame(t *testing.T, data []byte) chart.Frame {
	t.Helper()
	var msg frameMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "frame", msg.Type)
	return msg.Frame
}

func Test_Hub_IgnoresOlderRevisions(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	h.Render(chart.Frame{Timeframe: model.Timeframe1h, Revision: 5})
	h.Render(chart.Frame{Timeframe: model.Timeframe4h, Revision: 3})

	f, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(5), f.Revision)
	assert.Equal(t, model.Timeframe1h, f.Timeframe)
}

func Test_Hub_SubscriberPrimedAndBroadcast(t *testing.T) {
	h := NewHub(4, zap.NewNop())
	h.Render(chart.Frame{Timeframe: model.Timeframe1h, Revision: 1})

	sub := h.subscribe()
	assert.Equal(t, 1, h.Subscribers())
	assert.Equal(t, uint64(1), decodeFrame(t, <-sub.send).Revision)

	h.Render(chart.Frame{Timeframe: model.Timeframe1h, Revision: 2})
	assert.Equal(t, uint64(2), decodeFrame(t, <-sub.send).Revision)

	h.unsubscribe(sub)
	h.unsubscribe(sub)
	assert.Zero(t, h.Subscribers())
	_, ok := <-sub.send
	assert.False(t, ok)
}

func Test_Hub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	sub := h.subscribe()

	h.Render(chart.Frame{Revision: 1})
	h.Render(chart.Frame{Revision: 2}) // buffer full

	assert.Zero(t, h.Subscribers())
	<-sub.send
	_, ok := <-sub.send
	assert.False(t, ok)
}

func Test_Hub_Close(t *testing.T) {
	h := NewHub(1, zap.NewNop())
	a, b := h.subscribe(), h.subscribe()
	h.Close()

	_, okA := <-a.send
	_, okB := <-b.send
	assert.False(t, okA)
	assert.False(t, okB)
	assert.Zero(t, h.Subscribers())
}
