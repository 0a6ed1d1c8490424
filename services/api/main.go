package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/02loveslollipop/howmuchwater/internal/logging"
	"github.com/02loveslollipop/howmuchwater/internal/store"
	"github.com/02loveslollipop/howmuchwater/services/api/config"
	httpserver "github.com/02loveslollipop/howmuchwater/services/api/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Fatal("db connection error", zap.Error(err))
	}
	defer st.Close()

	srv := httpserver.New(cfg, st, logger)
	logger.Info("REST API listening", zap.String("addr", cfg.ListenAddr()), zap.String("driver", cfg.DatabaseDriver))

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
