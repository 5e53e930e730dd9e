package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	ServerPort int

	// Path to the sqlite database file, or ":memory:".
	DatabaseFile string

	// The site's own origin, e.g. "https://eardogger.com". The only origin
	// ever granted CORS approval, and only on the update endpoint.
	OwnOrigin string

	// HMAC key for the signed logged-out login-guard cookie.
	CookieSecret []byte

	LogLevel string
	// Dev switches on tinted logs and full error bodies on 500s.
	Dev bool
}

func Load() Config {
	cfg := Config{
		ServerPort:   EnvIntDefault("SERVER_PORT", 8080),
		DatabaseFile: EnvDefault("DATABASE_FILE", "eardogger.db"),
		OwnOrigin:    EnvDefault("OWN_ORIGIN", "http://localhost:8080"),
		CookieSecret: []byte(os.Getenv("COOKIE_SECRET")),
		LogLevel:     EnvDefault("LOG_LEVEL", "info"),
		Dev:          EnvBoolDefault("DEV_MODE", false),
	}
	return cfg
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
