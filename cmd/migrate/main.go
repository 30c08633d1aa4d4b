package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"

	appconfig "github.com/wolfman30/cartoncaps-assistant/internal/config"
	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const usage = "usage: migrate [up | down | version | force <version>]"

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := run(cfg, os.Args[1:], logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *appconfig.Config, args []string, logger *logging.Logger) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := datastore.Open(ctx, datastore.OpenOptions{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		URL:    cfg.DatabaseURL,
		Create: true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	m, err := datastore.NewMigrator(db, cfg.DatabaseDriver)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	case "version":
	default:
		return errors.New(usage)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read version: %w", err)
	}
	logger.Info("migrations complete", "command", command, "driver", cfg.DatabaseDriver, "version", version, "dirty", dirty)
	return nil
}
