package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quiz-duel-server/analytics"
	"quiz-duel-server/api"
	"quiz-duel-server/auth"
	"quiz-duel-server/config"
	"quiz-duel-server/game"
	"quiz-duel-server/loghandler"
	"quiz-duel-server/matchmaking"
	"quiz-duel-server/storage"
	"quiz-duel-server/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found; using environment variables.")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, slog.LevelInfo)))

	if cfg.JWTSecret == "" && cfg.AuthJWKSURL == "" {
		log.Print("Auth: neither JWT_SECRET nor AUTH_JWKS_URL is set — all connections will be rejected.")
	}
	validator, err := auth.NewValidator(cfg)
	if err != nil {
		log.Fatalf("Auth setup: %v", err)
	}

	policy := storage.RatingPolicy{
		WinDelta:     cfg.WinDelta,
		LossDelta:    cfg.LossDelta,
		DrawDelta:    cfg.DrawDelta,
		Floor:        cfg.RatingFloor,
		LevelDivisor: cfg.LevelDivisor,
	}
	var store storage.GameStore
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := storage.NewStore(ctx, cfg.DatabaseURL, policy)
		cancel()
		if err != nil {
			log.Fatalf("Connecting to database: %v", err)
		}
		store = pg
		log.Print("Storage: Postgres")
	} else {
		mem := storage.NewMemStore(policy)
		storage.SeedSampleData(mem)
		store = mem
		log.Print("Storage: in-memory (DATABASE_URL not set, sample questions loaded)")
	}
	defer store.Close()

	an := analytics.NewService(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer an.Close()

	registry := game.NewRegistry()
	hub := ws.NewHub(cfg, store, validator, registry)
	mm := matchmaking.NewMatchmaker(cfg, store, registry, an, hub)
	hub.Matchmaker = mm

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	router := api.NewRouter(api.NewHandler(cfg, store, validator))
	router.HandleFunc("/ws/matchmaking", hub.ServeMatchmaking)
	router.HandleFunc("/ws/game/{id}", hub.ServeGame)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Quiz duel server listening on %s (rounds=%d, timeout=%ds)",
			addr, cfg.TotalRounds, cfg.RoundTimeoutSec)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
}
