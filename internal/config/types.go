package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Discord DiscordConfig  `json:"discord"`
	Logging LoggingConfig  `json:"logging"`
	Purge   PurgeConfig    `json:"purge"`
	Scan    ScanConfig     `json:"scan"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type DiscordConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs gate the control commands; everyone else is ignored.
	OwnerUserIDs  []string `json:"owner_user_ids"`
	CommandPrefix string   `json:"command_prefix"`
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingDiscord mirrors warnings and errors into a channel, rate limited
// so a failure storm cannot flood the guild.
type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	Channel    string `json:"channel"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// PurgeConfig controls the scheduled channel cleanup. IntervalHours 0 means
// manual-only: the worker never fires on a timer.
type PurgeConfig struct {
	Channel       string `json:"channel"`
	IntervalHours int    `json:"interval_hours"`
}

type ScanConfig struct {
	Feed       FeedConfig                `json:"feed"`
	Strategies map[string]StrategyConfig `json:"strategies"`
}

type FeedConfig struct {
	BaseURL    string `json:"base_url"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// Timeout is a Go duration string (e.g. "10s").
	Timeout string `json:"timeout,omitempty"`
}

// StrategyConfig wires one built-in strategy to a channel and an interval.
// An empty product list keeps the strategy's defaults.
type StrategyConfig struct {
	Channel       string   `json:"channel"`
	IntervalHours int      `json:"interval_hours"`
	Products      []string `json:"products,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	storage:
//	  driver: sqlite
//	  path: ./quantbot.db
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

func (c *DiscordConfig) Prefix() string {
	if c.CommandPrefix == "" {
		return "!"
	}
	return c.CommandPrefix
}

func (c *DiscordConfig) IsOwner(userID string) bool {
	for _, id := range c.OwnerUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
