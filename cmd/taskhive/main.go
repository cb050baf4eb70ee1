package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/taskhive-dev/taskhive/db"
	"github.com/taskhive-dev/taskhive/internal/auth"
	"github.com/taskhive-dev/taskhive/internal/config"
	"github.com/taskhive-dev/taskhive/internal/handlers"
	"github.com/taskhive-dev/taskhive/internal/router"
	"github.com/taskhive-dev/taskhive/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on process environment")
	}

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := auth.Init(cfg.JWTSecret); err != nil {
		log.Fatalf("Failed to initialize token signing: %v", err)
	}

	if err := db.ConnectDatabase(cfg.DatabaseDSN); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store, err := storage.NewLocalStore(cfg.UploadDir)

	if err != nil {
		log.Fatalf("Failed to prepare upload storage: %v", err)
	}

	handlers.InitStorage(store)

	r := router.NewRouter(cfg.UploadDir, cfg.AllowedOrigins)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
