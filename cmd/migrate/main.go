package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/marianozunino/vanish/internal/config"
	"github.com/marianozunino/vanish/internal/index"
)

func main() {
	var (
		dbPath  = flag.String("db", "./data/vanish.db", "Database path")
		action  = flag.String("action", "up", "Migration action: up, down, force")
		version = flag.Int("version", 0, "Version to force to")
	)
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	cfg := config.Config{SQLitePath: *dbPath}
	ix, err := index.New(&cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer ix.Close()

	switch *action {
	case "up":
		if err := ix.MigrateUp(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		if err := ix.MigrateDown(); err != nil {
			log.Fatalf("Migration rollback failed: %v", err)
		}
		log.Println("Migrations rolled back successfully")

	case "force":
		if *version == 0 {
			log.Fatal("Version must be specified for force action")
		}
		if err := ix.MigrateForce(*version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("Database version forced to %d", *version)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}
