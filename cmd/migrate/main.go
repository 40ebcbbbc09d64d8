package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-orders/internal/adapters/postgres"
	"github.com/dumu-tech/restaurant-orders/internal/config"
	"github.com/dumu-tech/restaurant-orders/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Use DATABASE_PUBLIC_URL for local runs against a hosted database
	dbURL := cfg.DBURL
	if publicURL := os.Getenv("DATABASE_PUBLIC_URL"); publicURL != "" {
		dbURL = publicURL
		log.Info("using DATABASE_PUBLIC_URL for local execution")
	} else if strings.Contains(dbURL, ".internal") {
		log.Warn("database URL uses an internal hostname, set DATABASE_PUBLIC_URL for local runs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbpool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("database connection established")

	err = postgres.Migrate(ctx, dbpool, func(name string) {
		log.Info("migration applied", zap.String("file", name))
	})
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	log.Info("migrations completed successfully")
}
