package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wavechart/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/price", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(priceJSON))
	})
	mux.HandleFunc("/api/analysis/all", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(analysisJSON))
	})
	mux.HandleFunc("/api/candles/1h", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"candles": [{"time": 1709283600, "open": 1, "high": 2, "low": 0.5, "close": 1.5}]}`))
	})
	mux.HandleFunc("/api/candles/4h", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"candles": []}`))
	})
	mux.HandleFunc("/api/candles/1D", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func Test_RESTClient_GetPrice(t *testing.T) {
	srv := newBackend(t)
	client := NewRESTClient(srv.URL+"/api/", 5*time.Second)

	p, err := client.GetPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.5, p.Price)
	assert.Equal(t, 1.2, p.Change24h)
}

func Test_RESTClient_GetAnalyses(t *testing.T) {
	srv := newBackend(t)
	client := NewRESTClient(srv.URL+"/api", 5*time.Second)

	out, err := client.GetAnalyses(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func Test_RESTClient_GetCandles(t *testing.T) {
	srv := newBackend(t)
	client := NewRESTClient(srv.URL+"/api", 5*time.Second)

	out, err := client.GetCandles(context.Background(), model.Timeframe1h, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1.5, out[0].Close)

	// default limit
	out, err = client.GetCandles(context.Background(), model.Timeframe4h, 0)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = client.GetCandles(context.Background(), "2h", 10)
	assert.Error(t, err)
}

func Test_RESTClient_FetchError(t *testing.T) {
	srv := newBackend(t)
	client := NewRESTClient(srv.URL+"/api", 5*time.Second)

	_, err := client.GetCandles(context.Background(), model.Timeframe1D, 10)
	var ferr *model.FetchError
	require.True(t, errors.As(err, &ferr), "got %v", err)
	assert.Equal(t, http.StatusBadGateway, ferr.StatusCode)
	assert.Equal(t, "/candles/1D", ferr.Endpoint)
}

func Test_RESTClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewRESTClient(url, time.Second)
	_, err := client.GetPrice(context.Background())
	var ferr *model.FetchError
	require.True(t, errors.As(err, &ferr), "got %v", err)
	assert.Zero(t, ferr.StatusCode)
}
