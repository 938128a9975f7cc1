package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"pulse-chat/config"
	"pulse-chat/internal/repository"
	"pulse-chat/pkg/database"
)

const usage = `
Pulse Chat - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Apply the schema (idempotent)
  status      Show database connection status

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	switch flag.Arg(0) {
	case "up":
		if err := repository.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		log.Println("Schema applied")
	case "status":
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("Database unreachable: %v", err)
		}
		log.Println("Database reachable")
	default:
		flag.Usage()
		os.Exit(1)
	}
}
