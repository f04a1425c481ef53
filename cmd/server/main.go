package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/auth"
	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/database"
	"github.com/arnavshah/pharmacal-api/pkg/handlers"
	"github.com/arnavshah/pharmacal-api/pkg/logger"
	"github.com/arnavshah/pharmacal-api/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	l, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		l.Fatal("database", zap.Error(err))
	}
	store := database.NewStore(db)

	ctx := context.Background()
	if err := auth.EnsureAdminExists(ctx, store, cfg.Admin, l); err != nil {
		l.Fatal("seed admin", zap.Error(err))
	}

	m := metrics.New()
	h, err := handlers.New(cfg, store, handlers.Notifier(cfg, l), l, m)
	if err != nil {
		l.Fatal("handlers", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Router(l, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("could not run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("shutdown", zap.Error(err))
	}
	l.Info("server stopped")
}
