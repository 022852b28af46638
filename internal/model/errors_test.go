package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FetchError_Kind(t *testing.T) {
	for endpoint, want := range map[string]string{
		"/price":        "price",
		"/analysis/all": "analysis",
		"/candles/1h":   "candles",
		"/candles/1D":   "candles",
		"":              "unknown",
	} {
		err := &FetchError{Endpoint: endpoint, Err: errors.New("boom")}
		assert.Equal(t, want, err.Kind(), endpoint)
	}
}
