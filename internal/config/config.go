package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr  string
	Store       string // "memory" or "postgres"
	DatabaseURL string
	LogLevel    string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads configuration from a .env file if one exists, then the
// environment. Everything has a default that works out of the box with the
// in-memory store.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		ListenAddr:  getenv("LISTEN_ADDR", ":8888"),
		Store:       getenv("STORE", "memory"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
}
