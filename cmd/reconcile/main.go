// Command reconcile recomputes every denormalized counter from its
// source-of-truth rows and repairs drifted values. It is a one-shot,
// idempotent pass meant for cron, post-import cleanup, or drift
// investigation.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"atelier/internal/config"
	"atelier/internal/database"
	"atelier/internal/repository"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "abort the pass after this long")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := database.WaitForDB(ctx, cfg); err != nil {
		log.Fatalf("Database not ready: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	start := time.Now()
	repaired, err := repository.NewCounterStore(db).Reconcile(ctx)
	if err != nil {
		log.Fatalf("Reconciliation failed after repairing %d rows: %v", repaired, err)
	}
	log.Printf("Reconciliation complete: %d counters repaired in %s", repaired, time.Since(start).Round(time.Millisecond))
}
