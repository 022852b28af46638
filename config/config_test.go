package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, "ws://localhost:8000/ws", cfg.WS.URL)
	assert.Equal(t, 60*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "1h", cfg.Chart.DefaultTimeframe)
	assert.Equal(t, 200, cfg.Chart.CandleLimit)
	assert.Equal(t, ":8080", cfg.Dashboard.Addr)
	assert.Equal(t, "dev", cfg.Log.Environment)
}

func Test_LoadEnvOverrides(t *testing.T) {
	t.Setenv("API_URL", "http://backend:9000/api")
	t.Setenv("WS_URL", "ws://backend:9000/ws")
	t.Setenv("POLL_INTERVAL", "5s")

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000/api", cfg.API.BaseURL)
	assert.Equal(t, "ws://backend:9000/ws", cfg.WS.URL)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
}

func Test_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: prod
chart:
  default_timeframe: 4h
  candle_limit: 300
log:
  level: debug
`), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "prod", cfg.Log.Environment)
	assert.Equal(t, "4h", cfg.Chart.DefaultTimeframe)
	assert.Equal(t, 300, cfg.Chart.CandleLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep defaults
	assert.Equal(t, 1200, cfg.Chart.Width)

	_, err = LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

type fakeParameters map[string]string

func (f fakeParameters) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	v, ok := f[*params.Name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: params.Name, Value: &v}}, nil
}

func Test_ResolveOrigins(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	params := fakeParameters{
		"WAVECHART_API_URL": "https://analysis.internal/api",
		"WAVECHART_WS_URL":  "wss://analysis.internal/ws",
	}
	require.NoError(t, cfg.resolveOrigins(context.Background(), params))
	assert.Equal(t, "https://analysis.internal/api", cfg.API.BaseURL)
	assert.Equal(t, "wss://analysis.internal/ws", cfg.WS.URL)

	assert.Error(t, cfg.resolveOrigins(context.Background(), fakeParameters{}))
}

func Test_ResolveOrigins_NotProd(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	before := *cfg
	require.NoError(t, cfg.ResolveOrigins(context.Background()))
	assert.Equal(t, before, *cfg)
}
