// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/podiumhq/podium/internal/analysis"
	"github.com/podiumhq/podium/internal/auth"
	"github.com/podiumhq/podium/internal/cache"
	"github.com/podiumhq/podium/internal/config"
	"github.com/podiumhq/podium/internal/database"
	"github.com/podiumhq/podium/internal/handlers"
	"github.com/podiumhq/podium/internal/middleware"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/room"
	"github.com/podiumhq/podium/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	auth.Init()
	cfg := config.FromEnv()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	var st store.Store
	if cfg.PostgresDSN != "" {
		pg, err := database.Connect(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("database connect: %v", err)
		}
		defer pg.Close()
		st = pg
	} else {
		logger.Warn("POSTGRES_DSN not set, running on the in-memory store")
		st = store.NewMemoryStore()
	}

	if err := cache.Connect(cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.Warnf("redis unavailable, results will not be archived: %v", err)
		cache.Rdb = nil
	}

	pipeline := analysis.NewPipeline(st, logger,
		analysis.NewRemoteModelScorer(cfg.ScoringServiceURL, cfg.TierTimeout),
		analysis.NewGenerativeScorer(cfg.OpenAIAPIKey, cfg.GenerativeModel, cfg.OpenAIBaseURL),
		analysis.NewHeuristicScorer(),
	)
	pipeline.SetTierTimeout(cfg.TierTimeout)

	rooms := room.NewRoomStore(st, pipeline, logger)
	rooms.OnFinalized = func(result *models.Result) {
		if cache.Rdb == nil {
			return
		}
		totals := make(map[string]int, len(result.Totals))
		for id, total := range result.Totals {
			totals[id.String()] = total
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := cache.PublishResult(ctx, cache.ResultRecord{
			DebateID:  result.DebateID,
			WinnerID:  result.WinnerID,
			Totals:    totals,
			Source:    string(result.Source),
			Timestamp: result.GeneratedAt.Unix(),
		}); err != nil {
			logger.Warnf("archiving result for debate %s failed: %v", result.DebateID, err)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("/debate/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateDebateHandler(rooms),
	)))
	mux.Handle("/debate/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListDebatesHandler(rooms),
	)))
	mux.Handle("/debate/result", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ResultHandler(st),
	)))
	mux.HandleFunc("/health", handlers.HealthHandler())

	// The websocket route stays unwrapped: the upgrade needs the raw
	// http.ResponseWriter.
	mux.HandleFunc("/debate/ws/", handlers.DebateWSHandler(logger, rooms))

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
