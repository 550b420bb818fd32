package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/diabepredict/diabepredict/internal/api"
	"github.com/diabepredict/diabepredict/internal/auth"
	"github.com/diabepredict/diabepredict/internal/config"
	"github.com/diabepredict/diabepredict/internal/model"
	"github.com/diabepredict/diabepredict/internal/score"
	"github.com/diabepredict/diabepredict/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer st.Close()

	scorer, err := buildScorer(cfg)
	if err != nil {
		log.Fatalf("scorer error: %v", err)
	}
	log.Printf("scoring with model %q", scorer.Info().Name)

	tokens := auth.NewTokenIssuer(cfg.AuthSecret, cfg.TokenTTL)
	router := api.SetupRouter(st, scorer, tokens)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Printf("server listening on :%s", cfg.Port)
	waitForShutdown(server)
}

// openStore selects Postgres when DATABASE_URL is set, SQLite otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	}
	return store.OpenSQLite(cfg.SQLitePath)
}

func buildScorer(cfg *config.Config) (model.Scorer, error) {
	switch cfg.Scorer {
	case config.ScorerArtifact:
		return score.LoadArtifact(cfg.ModelPath)
	case config.ScorerRemote:
		return score.NewRemoteScorer(cfg.ModelServiceURL), nil
	default:
		return score.NewHeuristicScorer(), nil
	}
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
