package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log *slog.Logger
}

func openSQLite(cfg Config, log *slog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendSignal(ctx context.Context, e SignalEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signals(at, strategy, product, action, price, stop_loss, position_usd, position_units)
		 VALUES(?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Strategy, e.Product, e.Action,
		e.Price, e.StopLoss, e.PositionUSD, e.PositionUnits,
	)
	return err
}

func (s *sqliteStore) AppendPurge(ctx context.Context, e PurgeEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purge_audit(at, channel_id, deleted, cause, actor, err)
		 VALUES(?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ChannelID, e.Deleted, e.Cause,
		nullStr(e.Actor), nullStr(e.Error),
	)
	return err
}

func (s *sqliteStore) RecentSignals(ctx context.Context, strategy string, limit int) ([]SignalEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, strategy, product, action, price,
		        COALESCE(stop_loss, 0), COALESCE(position_usd, 0), COALESCE(position_units, 0)
		 FROM signals WHERE strategy = ? ORDER BY at DESC LIMIT ?`,
		strategy, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignalEntry
	for rows.Next() {
		var e SignalEntry
		var at string
		if err := rows.Scan(&at, &e.Strategy, &e.Product, &e.Action, &e.Price, &e.StopLoss, &e.PositionUSD, &e.PositionUnits); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
