package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_Recorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordApplied("push", 101.5)
	r.RecordApplied("push", 102)
	r.RecordApplied("pull", 99)
	r.RecordRejected("stale")
	r.RecordDecodeError("push")
	r.RecordFetchError("price")
	r.RecordConnState(1)
	r.RecordConfluence(3, 1)
	r.RecordCandleFetch("1h", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.updatesApplied.WithLabelValues("push")))
	assert.Equal(t, 99.0, testutil.ToFloat64(r.lastPrice))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.updatesRejected.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchErrors.WithLabelValues("price")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.connState))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.confluence.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.confluence.WithLabelValues("SELL")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.candleFetch))
}

func Test_Recorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordApplied("push", 1)
		r.RecordRejected("stale")
		r.RecordDecodeError("push")
		r.RecordFetchError("price")
		r.RecordConnState(2)
		r.RecordConfluence(0, 0)
		r.RecordCandleFetch("1h", 1)
	})
}
