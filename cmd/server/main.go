package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/vhoang/loto-live/internal/config"
	"github.com/vhoang/loto-live/internal/httpapi"
	"github.com/vhoang/loto-live/internal/hub"
	"github.com/vhoang/loto-live/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := buildLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	var archive store.Archive = store.Noop{}
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open archive", zap.Error(err))
		}
		archive = pg
		logger.Info("game archive enabled")
	}

	ctx := context.Background()
	h := hub.NewHub(ctx, archive, logger)

	handler := httpapi.SetupRoutes(h, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
