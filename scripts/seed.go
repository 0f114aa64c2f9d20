package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"shareit/internal/database"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		fixturePath = flag.String("fixture", "configs/seed.yaml", "path to seed.yaml")
		dbPath      = flag.String("db", "./data/shareit.db", "path to sqlite db")
	)
	flag.Parse()

	raw, err := os.ReadFile(*fixturePath)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var data database.SeedData
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}
	if len(data.Users) == 0 {
		return fmt.Errorf("no users in fixture")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := db.Seed(ctx, data)
	if err != nil {
		return err
	}

	logger.Info().Int("users_created", result.UsersCreated).Int("items_created", result.ItemsCreated).Msg("seed complete")
	return nil
}
