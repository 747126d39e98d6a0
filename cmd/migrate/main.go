package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// migrator is the part of *migrate.Migrate the command drives.
type migrator interface {
	Up() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
}

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up, down or version")
	dir := flag.String("dir", "./migrations", "directory holding the migration files")
	flag.Parse()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL not set in environment")
	}

	m, err := migrate.New("file://"+*dir, dbURL)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}
	defer m.Close()

	if err := run(m, *mode); err != nil {
		log.Fatal(err)
	}
}

func run(m migrator, mode string) error {
	switch mode {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Println("No new migrations to apply.")
				return nil
			}
			return fmt.Errorf("migration up failed: %w", err)
		}
		fmt.Println("All new migrations applied successfully.")
		return nil

	case "down":
		// roll back only the latest migration
		if err := m.Steps(-1); err != nil {
			if errors.Is(err, migrate.ErrNilVersion) || errors.Is(err, os.ErrNotExist) {
				fmt.Println("No migrations to roll back.")
				return nil
			}
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Println("Rollback successful.")
		return nil

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read version: %w", err)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil

	default:
		return fmt.Errorf("unknown mode: %s (use 'up', 'down' or 'version')", mode)
	}
}
