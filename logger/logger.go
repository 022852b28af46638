package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"wavechart/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap.Logger configured based on the given options.
func New(opts config.LogConfig) (*zap.Logger, error) {
	level := opts.Level
	if level == "" {
		level = "info"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	// Determine encoding format
	encoding := "json"
	if opts.Environment == "dev" || opts.Format == "console" {
		encoding = "console"
	}

	encoderCfg := encoderConfig(encoding)
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core

	// stdout uses the selected encoding
	stdoutEncoder := zapcore.NewJSONEncoder(encoderCfg)
	if encoding == "console" {
		stdoutEncoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	consoleCore := zapcore.NewCore(
		stdoutEncoder,
		zapcore.Lock(os.Stdout),
		lvl,
	)
	cores = append(cores, consoleCore)

	// Optional file output with rotation via lumberjack
	if opts.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.OutputFile,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     14, // days
			Compress:   true,
		})

		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			fileWriter,
			lvl,
		)
		cores = append(cores, fileCore)
	}

	core := zapcore.NewTee(cores...)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", "wavechart"))
	return logger, nil
}

// encoderConfig returns a zapcore.EncoderConfig based on log format.
func encoderConfig(format string) zapcore.EncoderConfig {
	if format == "console" {
		return zap.NewDevelopmentEncoderConfig()
	}
	return zap.NewProductionEncoderConfig()
}
