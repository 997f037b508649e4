package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"autotest/internal/cli"
	"autotest/internal/config"
	"autotest/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Logger.Env, cfg.Logger.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.New(cfg, log, os.Stdout).Run(ctx, os.Args[1:]); err != nil {
		stop()
		_ = log.Sync()
		os.Exit(1)
	}
}
