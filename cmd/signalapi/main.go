package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"signal-backtester/internal/marketdata"
	"signal-backtester/internal/marketdata/marketdataobs"
	"signal-backtester/internal/server"
	"signal-backtester/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	addr := flag.String("addr", "", "override server.addr")
	flag.Parse()

	_ = godotenv.Load()

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		zl.Fatal("Failed to load config", zap.String("path", *configPath), zap.Error(err))
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	base, closeSource, err := marketdata.Open(ctx, marketdata.ParamsFromConfig(cfg))
	if err != nil {
		zl.Fatal("Failed to open candle source", zap.String("kind", cfg.Source.Kind), zap.Error(err))
	}
	defer closeSource()

	// Serves the last merged history when the upstream is unavailable.
	src := marketdataobs.Wrap(marketdata.NewCache(base, 2000))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.New(src, cfg, zl).Router(),
	}

	go func() {
		zl.Info("Starting HTTP server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("source", src.Name()),
			zap.String("symbol", cfg.Symbol),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("Server stopped")
}
