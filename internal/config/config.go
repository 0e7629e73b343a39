package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Config holds process configuration for the gateway.
type Config struct {
	Addr     string
	AuthUser string
	AuthPass string

	Provider     string // "openai" or "ollama"
	Model        string
	SystemPrompt string

	OpenAIKey string
	OpenAIURL string

	OllamaHost string

	SessionTTL time.Duration // 0 disables idle eviction
}

// Load reads configuration from environment variables with flag overrides.
func Load() (Config, error) {
	cfg := Config{
		Addr:       envDefault("CHAT_RELAY_ADDR", ":8000"),
		AuthUser:   envDefault("CHAT_RELAY_USER", "giga"),
		AuthPass:   envDefault("CHAT_RELAY_PASS", "top"),
		Provider:   envDefault("CHAT_RELAY_PROVIDER", "openai"),
		Model:      envDefault("CHAT_RELAY_MODEL", "gpt-4o-mini"),
		OpenAIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIURL:  envDefault("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		OllamaHost: envDefault("OLLAMA_HOST", "http://localhost:11434"),
	}
	cfg.SystemPrompt = os.Getenv("CHAT_RELAY_SYSTEM_PROMPT")

	ttl := envDefault("CHAT_SESSION_TTL", "")

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "completion provider (openai|ollama)")
	flag.StringVar(&cfg.Model, "model", cfg.Model, "model name")
	flag.StringVar(&ttl, "session-ttl", ttl, "evict sessions idle longer than this (e.g. 30m, empty disables)")
	flag.Parse()

	if ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid session ttl %q: %w", ttl, err)
		}
		cfg.SessionTTL = d
	}

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return Config{}, fmt.Errorf("OPENAI_API_KEY is required when CHAT_RELAY_PROVIDER=openai")
		}
	case "ollama":
	default:
		return Config{}, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return cfg, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
