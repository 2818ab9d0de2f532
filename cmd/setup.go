package cmd

import (
	"database/sql"
	"log"
	"log/slog"

	"github.com/jjenkins/readiness/internal/catalog"
	"github.com/jjenkins/readiness/internal/config"
	"github.com/jjenkins/readiness/internal/logging"
	"github.com/jjenkins/readiness/internal/store"
)

// setup loads configuration, the logger and the database shared by every command
func setup() (*config.Config, *slog.Logger, *sql.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Log)

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	return cfg, logger, db
}

// loadCatalog reads the questionnaire from path, or the built-in one
func loadCatalog(path string) *catalog.Catalog {
	var (
		cat *catalog.Catalog
		err error
	)
	if path == "" {
		cat, err = catalog.Default()
	} else {
		cat, err = catalog.LoadFile(path)
	}
	if err != nil {
		log.Fatalf("Failed to load questionnaire: %v", err)
	}
	return cat
}
