package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var ErrMissingEnv = errors.New("missing required environment variable")

// Config carries everything main needs to wire the server. Values come
// from the environment; godotenv loads a .env file first in development.
type Config struct {
	Addr           string
	AllowedOrigins []string
	JWTKey         string
	PostgresURL    string
	TokenMaxAge    time.Duration
	Debug          bool
}

func Load() (Config, error) {
	cfg := Config{
		Addr:        ":5000",
		TokenMaxAge: 7 * 24 * time.Hour,
		Debug:       os.Getenv("GIN_MODE") != "release",
	}

	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}

	origins, exists := os.LookupEnv("ALLOWED_ORIGINS")
	if !exists {
		return Config{}, fmt.Errorf("%w: ALLOWED_ORIGINS", ErrMissingEnv)
	}
	for _, origin := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
		}
	}

	cfg.JWTKey, exists = os.LookupEnv("JWT_KEY")
	if !exists {
		return Config{}, fmt.Errorf("%w: JWT_KEY", ErrMissingEnv)
	}

	cfg.PostgresURL, exists = os.LookupEnv("POSTGRES_URL")
	if !exists {
		return Config{}, fmt.Errorf("%w: POSTGRES_URL", ErrMissingEnv)
	}

	if raw := os.Getenv("TOKEN_MAX_AGE"); raw != "" {
		age, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TOKEN_MAX_AGE: %w", err)
		}
		cfg.TokenMaxAge = age
	}

	return cfg, nil
}

// ClientConfig is what a headless player process needs: where the server
// lives, which room to join (empty means create one), and the opponent
// staleness window for the forfeit check.
type ClientConfig struct {
	ServerURL       string
	RoomCode        string
	HeartbeatWindow time.Duration
}

func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		RoomCode:        os.Getenv("ROOM_CODE"),
		HeartbeatWindow: 10 * time.Second,
	}

	serverURL, exists := os.LookupEnv("SERVER_URL")
	if !exists {
		return ClientConfig{}, fmt.Errorf("%w: SERVER_URL", ErrMissingEnv)
	}
	cfg.ServerURL = strings.TrimRight(serverURL, "/")

	if raw := os.Getenv("HEARTBEAT_WINDOW"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil {
			return ClientConfig{}, fmt.Errorf("invalid HEARTBEAT_WINDOW: %w", err)
		}
		cfg.HeartbeatWindow = window
	}

	return cfg, nil
}
