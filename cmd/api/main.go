package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shilo-maker/soluflow-sub001/internal/app"
	"github.com/shilo-maker/soluflow-sub001/internal/config"
	"github.com/shilo-maker/soluflow-sub001/internal/gitrepo"
	"github.com/shilo-maker/soluflow-sub001/internal/live"
	"github.com/shilo-maker/soluflow-sub001/internal/search"
	"github.com/shilo-maker/soluflow-sub001/internal/session"
	"github.com/shilo-maker/soluflow-sub001/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	registry := live.NewRegistry()

	var redisStore *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	service := app.New(cfg, dataStore, gitService, searchService, registry, redisStore)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	liveHandler := live.NewHandler(registry, service.LiveAuth, cfg.LiveWriteTimeout, cfg.LivePingPeriod)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	mux := http.NewServeMux()
	mux.Handle("/api/live", liveHandler)
	mux.Handle("/", httpServer.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// WriteTimeout stays generous for PDF export; the live socket is
		// exempt after the upgrade hijacks the connection.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("SoluFlow API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
