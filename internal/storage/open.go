package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// Store is the minimal persistence API used by the actions.
type Store interface {
	AppendSignal(ctx context.Context, e SignalEntry) error
	AppendPurge(ctx context.Context, e PurgeEntry) error
	RecentSignals(ctx context.Context, strategy string, limit int) ([]SignalEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log *slog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
