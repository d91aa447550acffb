package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sipenduk/common/database"
	"sipenduk/internal/config"
	"sipenduk/internal/repository"
)

// 用法：apply-migration [migration_file.sql]；不带参数时执行内置 schema
func main() {
	sqlContent := repository.Schema()
	source := "embedded schema.sql"
	if len(os.Args) > 1 {
		raw, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatalf("Failed to read migration file: %v", err)
		}
		sqlContent = string(raw)
		source = os.Args[1]
	}

	cfg := config.Load()
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Connected to database: %s\n", cfg.Database.Database)
	fmt.Printf("Applying %s\n\n", source)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := repository.Migrate(ctx, db, sqlContent)
	if err != nil {
		log.Fatalf("Migration failed after %d statements: %v", n, err)
	}
	fmt.Printf("Migration completed: %d statements executed\n", n)
}
