package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled and Open returns
// (nil, nil); callers must treat a nil Store as "don't record".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// SignalEntry records one emitted trading signal.
type SignalEntry struct {
	At            time.Time
	Strategy      string
	Product       string
	Action        string // BUY / SELL
	Price         float64
	StopLoss      float64
	PositionUSD   float64
	PositionUnits float64
}

// PurgeEntry records one purge run.
type PurgeEntry struct {
	At        time.Time
	ChannelID string
	Deleted   int
	Cause     string // schedule / manual
	Actor     string // user id for manual runs
	Error     string
}
