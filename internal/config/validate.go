package config

import (
	"errors"
	"fmt"

	"quantbot/internal/market"
)

// Validate performs the structural checks shared by startup and hot reload.
// A config that fails here is never committed.
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if len(c.Discord.OwnerUserIDs) == 0 {
		errs = append(errs, errors.New("discord.owner_user_ids must not be empty"))
	}

	// Interval values and blank channels are NOT rejected here: a bad
	// interval disables auto-scheduling for that worker and a blank channel
	// skips its registration. Both are wiring-time decisions, never fatal.
	known := make(map[string]bool, len(market.StrategyKeys))
	for _, k := range market.StrategyKeys {
		known[k] = true
	}
	for key := range c.Scan.Strategies {
		if !known[key] {
			errs = append(errs, fmt.Errorf("scan.strategies.%s: unknown strategy", key))
		}
	}

	if _, err := ParseDurationField("scan.feed.timeout", c.Scan.Feed.Timeout); err != nil {
		errs = append(errs, err)
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
