package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records client pipeline metrics in Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	updatesApplied  *prometheus.CounterVec
	updatesRejected *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	fetchErrors     *prometheus.CounterVec
	connState       prometheus.Gauge
	lastPrice       prometheus.Gauge
	confluence      *prometheus.GaugeVec
	candleFetch     *prometheus.HistogramVec
}

// New creates a Recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		updatesApplied: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavechart_updates_applied_total",
				Help: "Total number of snapshots applied to the store",
			},
			[]string{"source"},
		),
		updatesRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavechart_updates_rejected_total",
				Help: "Total number of updates rejected by the store",
			},
			[]string{"reason"},
		),
		decodeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavechart_decode_errors_total",
				Help: "Total number of malformed payloads dropped",
			},
			[]string{"channel"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wavechart_fetch_errors_total",
				Help: "Total number of failed pull requests",
			},
			[]string{"kind"},
		),
		connState: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wavechart_push_connection_state",
				Help: "Push channel state: 0 connecting, 1 open, 2 closed",
			},
		),
		lastPrice: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wavechart_last_price",
				Help: "Last applied price",
			},
		),
		confluence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wavechart_confluence_count",
				Help: "Number of timeframes currently signalling each action",
			},
			[]string{"action"},
		),
		candleFetch: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wavechart_candle_fetch_duration_seconds",
				Help:    "Duration of candle fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"timeframe"},
		),
	}
}

// RecordApplied records an applied snapshot and its price.
func (r *Recorder) RecordApplied(source string, price float64) {
	if r == nil {
		return
	}
	r.updatesApplied.WithLabelValues(source).Inc()
	r.lastPrice.Set(price)
}

// RecordRejected records an update the store refused.
func (r *Recorder) RecordRejected(reason string) {
	if r == nil {
		return
	}
	r.updatesRejected.WithLabelValues(reason).Inc()
}

// RecordDecodeError records a dropped malformed payload.
func (r *Recorder) RecordDecodeError(channel string) {
	if r == nil {
		return
	}
	r.decodeErrors.WithLabelValues(channel).Inc()
}

// RecordFetchError records a failed pull.
func (r *Recorder) RecordFetchError(kind string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(kind).Inc()
}

// RecordConnState records the push channel state.
func (r *Recorder) RecordConnState(state int) {
	if r == nil {
		return
	}
	r.connState.Set(float64(state))
}

// RecordConfluence records how many timeframes signal each action.
func (r *Recorder) RecordConfluence(buy, sell int) {
	if r == nil {
		return
	}
	r.confluence.WithLabelValues("BUY").Set(float64(buy))
	r.confluence.WithLabelValues("SELL").Set(float64(sell))
}

// RecordCandleFetch records candle fetch latency in seconds.
func (r *Recorder) RecordCandleFetch(timeframe string, seconds float64) {
	if r == nil {
		return
	}
	r.candleFetch.WithLabelValues(timeframe).Observe(seconds)
}
