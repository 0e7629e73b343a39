package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"chat-relay/internal/config"
	"chat-relay/internal/provider"
	"chat-relay/internal/server"
	"chat-relay/internal/service"
	"chat-relay/internal/session"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	client, err := buildProvider(cfg)
	if err != nil {
		logger.Error("provider setup failed", "err", err)
		os.Exit(1)
	}

	store := session.NewStore(client)
	svc := service.New(store, cfg.SystemPrompt, logger)
	srv := server.New(svc, logger)

	api := http.NewServeMux()
	srv.RegisterMux(api)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", server.BasicAuth(cfg.AuthUser, cfg.AuthPass, api))
	srv.RegisterHealth(mux)

	if cfg.SessionTTL > 0 {
		go evictLoop(store, cfg.SessionTTL, logger)
	}

	logger.Info("chat relay listening", "addr", cfg.Addr, "provider", cfg.Provider, "model", cfg.Model)
	if err := http.ListenAndServe(cfg.Addr, server.CORS(mux)); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func buildProvider(cfg config.Config) (provider.Client, error) {
	if cfg.Provider == "ollama" {
		return provider.NewOllamaClient(cfg.OllamaHost, cfg.Model)
	}
	return provider.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIURL, cfg.Model), nil
}

func evictLoop(store *session.Store, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for range ticker.C {
		if n := store.EvictIdle(ttl); n > 0 {
			logger.Info("evicted idle sessions", "count", n, "remaining", store.Len())
		}
	}
}
