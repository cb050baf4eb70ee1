package config

import (
	"fmt"
	"os"
	"strings"
)

// Config carries everything the process needs at start. The JWT secret
// lives here and nowhere else; packages receive it by injection.
type Config struct {
	Port           string
	DatabaseDSN    string
	JWTSecret      string
	UploadDir      string
	AllowedOrigins []string
}

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           os.Getenv("PORT"),
		DatabaseDSN:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		UploadDir:      os.Getenv("UPLOAD_DIR"),
		AllowedOrigins: loadAllowedOrigins(),
	}

	if cfg.Port == "" {
		cfg.Port = "3000"
	}

	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}

	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

func loadAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
