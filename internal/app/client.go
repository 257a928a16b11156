package app

import (
	"context"
	"fmt"
	"os"

	intrnl "seccam/internal"
	"seccam/internal/storage"
)

// RunClient opens the local cache, builds the logger, and launches the
// Bubble Tea TUI with the provided configuration.
func RunClient(cfg ClientConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.NewStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return intrnl.RunClient(intrnl.ClientOptions{
		ServerURL:   cfg.ServerURL,
		Username:    cfg.Username,
		VideoFormat: cfg.VideoFormat,
		DownloadDir: cfg.DownloadDir(),
		Page:        cfg.Page,
		Store:       store,
		Logger:      logger,
	})
}
