package database_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wonny/stockcast/pkg/config"
	"github.com/wonny/stockcast/pkg/database"
)

// Example demonstrates how to connect and apply the schema
func Example() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	applied, err := db.Migrate(ctx)
	if err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}

	status, err := db.HealthCheck(ctx)
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	fmt.Printf("Applied %d migration files\n", len(applied))
	fmt.Printf("Database is healthy: %v\n", status.Healthy)
}
