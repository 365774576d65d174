package main

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/config"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/httpapi"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/hub"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/round"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/session"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/topic"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/ws"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load(logger)

	var st store.Store
	if cfg.DatabaseURL != "" {
		gs, err := store.OpenGorm(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("open store", zap.Error(err))
		}
		st = gs
		logger.Info("using postgres-backed store")
	} else {
		st = store.NewMemStore()
		logger.Info("using in-memory store")
	}

	clock := clockwork.NewRealClock()
	topics := topic.MustLoad()
	coord := round.NewCoordinator(st, clock, cfg.RoundDuration, logger)

	ctx := context.Background()
	h := hub.NewHub(ctx)

	wsHandler := ws.Handler(&ws.Deps{
		Hub:   h,
		Store: st,
		Session: session.Config{
			Store:        st,
			Coordinator:  coord,
			Topics:       topics,
			Clock:        clock,
			TickInterval: cfg.TimerInterval,
			Log:          logger,
		},
		Log: logger,
	})

	handler := httpapi.SetupRoutes(&httpapi.Deps{
		Store:       st,
		Topics:      topics,
		Log:         logger,
		WS:          wsHandler,
		CORSOrigins: cfg.CORSOrigins,
	})

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
