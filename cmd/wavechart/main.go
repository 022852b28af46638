package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"wavechart/config"
	"wavechart/internal/app"
	"wavechart/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ../config/config.yaml next to the binary)")
	flag.Parse()

	// viper config
	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.ResolveOrigins(ctx); err != nil {
		log.Fatal("failed to resolve backend origins", zap.Error(err))
	}
	log.Info("starting wavechart",
		zap.String("environment", cfg.Environment),
		zap.String("api", cfg.API.BaseURL),
		zap.String("ws", cfg.WS.URL))

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("failed to build app", zap.Error(err))
	}
	if err := a.Run(ctx); err != nil {
		log.Fatal("app failed", zap.Error(err))
	}
}
