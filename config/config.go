package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	API         APIConfig       `mapstructure:"api"`
	WS          WSConfig        `mapstructure:"ws"`
	Poll        PollConfig      `mapstructure:"poll"`
	Chart       ChartConfig     `mapstructure:"chart"`
	Dashboard   DashboardConfig `mapstructure:"dashboard"`
	Log         LogConfig       `mapstructure:"log"`
	SSM         SSMConfig       `mapstructure:"ssm"`
}

// APIConfig is the pull side of the analysis backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WSConfig is the push side of the analysis backend.
type WSConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	ReconnectMin     time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax     time.Duration `mapstructure:"reconnect_max"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ChartConfig struct {
	DefaultTimeframe string        `mapstructure:"default_timeframe"`
	CandleLimit      int           `mapstructure:"candle_limit"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	Width            int           `mapstructure:"width"`
	Height           int           `mapstructure:"height"`
}

type DashboardConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // optional rotated log file
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("ws.url", "ws://localhost:8000/ws")
	v.SetDefault("ws.handshake_timeout", 10*time.Second)
	v.SetDefault("ws.ping_period", 15*time.Second)
	v.SetDefault("ws.reconnect_min", time.Second)
	v.SetDefault("ws.reconnect_max", 30*time.Second)

	v.SetDefault("poll.interval", 60*time.Second)
	v.SetDefault("poll.timeout", 15*time.Second)

	v.SetDefault("chart.default_timeframe", "1h")
	v.SetDefault("chart.candle_limit", 200)
	v.SetDefault("chart.fetch_timeout", 10*time.Second)
	v.SetDefault("chart.width", 1200)
	v.SetDefault("chart.height", 600)

	v.SetDefault("dashboard.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("ssm.api_url_param", "WAVECHART_API_URL")
	v.SetDefault("ssm.ws_url_param", "WAVECHART_WS_URL")
}

// Load reads config.yaml from the default search path, falling back to
// defaults when no file is present. Environment variables override both.
func Load() (*Config, error) {
	return load(defaultConfigPath(), "")
}

// LoadFrom reads the config file at path. An empty path means defaults and
// environment only.
func LoadFrom(path string) (*Config, error) {
	return load("", path)
}

func load(searchPath, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch {
	case file != "":
		v.SetConfigFile(file)
	case searchPath != "":
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(searchPath)
	}

	// Support environment variables with dot notation (e.g., POLL_INTERVAL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Backend origins keep their short names.
	if err := v.BindEnv("api.base_url", "API_URL"); err != nil {
		return nil, fmt.Errorf("bind API_URL: %w", err)
	}
	if err := v.BindEnv("ws.url", "WS_URL"); err != nil {
		return nil, fmt.Errorf("bind WS_URL: %w", err)
	}

	if file != "" || searchPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if file != "" || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.Environment
	}
	return &cfg, nil
}

func defaultConfigPath() string {
	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		return filepath.Join(pwd, "../../config")
	}
	return filepath.Join(filepath.Dir(ex), "../config")
}
