package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukerupert/manutenzioni/internal/config"
	"github.com/dukerupert/manutenzioni/internal/database"
	"github.com/dukerupert/manutenzioni/internal/logging"
)

// env is what every command needs: configuration, a logger and the database.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{cfg: cfg, logger: logger, db: db}, nil
}

func (e *env) Close() error {
	return e.db.Close()
}
