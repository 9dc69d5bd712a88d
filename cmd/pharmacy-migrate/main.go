package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("pharmacy-migrate", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store := repository.NewStore(db, cfg.Inventory.LockTimeout)
	if err := store.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}

	log.Info().Int("statements", len(repository.Migrations())).Msg("schema is up to date")
}
