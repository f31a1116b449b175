package config

import (
	"os"
	"strings"
)

type Config struct {
	Port string

	// DatabaseURL: store credential whatsmeow. AppDatabaseURL: recovery list
	// session (bisa DB yang sama).
	DatabaseURL    string
	AppDatabaseURL string

	JWTSecret     string
	AdminUsername string
	AdminPassword string

	CORSAllowOrigins []string
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "2121"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		AppDatabaseURL:   getEnv("APP_DATABASE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		CORSAllowOrigins: splitOrigins(getEnv("CORS_ALLOW_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitOrigins(raw string) []string {
	origins := strings.Split(raw, ",")
	for i, o := range origins {
		origins[i] = strings.TrimSpace(o)
	}
	return origins
}
