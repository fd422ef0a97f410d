// Command server runs the city quality service: it opens the indicator
// store, optionally seeds it from a gazetteer CSV, and serves the ingestion
// and ranking API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/citystat/city-quality-etl/internal/adapter/eurostat"
	"github.com/citystat/city-quality-etl/internal/adapter/gazetteer"
	"github.com/citystat/city-quality-etl/internal/adapter/httpapi"
	"github.com/citystat/city-quality-etl/internal/config"
	"github.com/citystat/city-quality-etl/internal/ingest"
	"github.com/citystat/city-quality-etl/internal/observability"
	"github.com/citystat/city-quality-etl/internal/rank"
	"github.com/citystat/city-quality-etl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.GazetteerPath != "" {
		loader := gazetteer.NewLoader(st, logger)
		if _, err := loader.LoadFile(ctx, cfg.GazetteerPath); err != nil {
			logger.Error("gazetteer load failed", "path", cfg.GazetteerPath, "error", err)
			os.Exit(1)
		}
	}

	datasets := eurostat.NewClient(cfg.EurostatBaseURL, cfg.EurostatTimeout, logger, metrics)
	ingestor := ingest.New(st, nil, logger, metrics)
	scorer := rank.NewScorer(st)
	ranker := rank.NewRanker(st, scorer, logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Store:    st,
		Ingestor: ingestor,
		Scorer:   scorer,
		Ranker:   ranker,
		Datasets: datasets,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
