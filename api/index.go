package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/auth"
	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/database"
	"github.com/arnavshah/pharmacal-api/pkg/handlers"
	"github.com/arnavshah/pharmacal-api/pkg/logger"
	"github.com/arnavshah/pharmacal-api/pkg/metrics"
)

var r *gin.Engine

func init() {
	// Load config (.env is picked up for local testing with vercel dev)
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	l, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}

	// Initialize DB
	db, err := database.Open(cfg.Database)
	if err != nil {
		l.Fatal("database", zap.Error(err))
	}
	store := database.NewStore(db)
	if err := auth.EnsureAdminExists(context.Background(), store, cfg.Admin, l); err != nil {
		l.Error("seed admin", zap.Error(err))
	}

	m := metrics.New()
	h, err := handlers.New(cfg, store, handlers.Notifier(cfg, l), l, m)
	if err != nil {
		l.Fatal("handlers", zap.Error(err))
	}

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	r = h.Router(l, m)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
