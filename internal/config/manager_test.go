package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
discord:
  token: "abc123"
  owner_user_ids: ["111", "222"]
  command_prefix: "!"
logging:
  level: info
  console: true
purge:
  channel: trade-alerts
  interval_hours: 6
scan:
  feed:
    base_url: https://api.exchange.coinbase.com
    rate_per_sec: 3
    timeout: 10s
  strategies:
    day:
      channel: day-trades
      interval_hours: 1
      products: [BTC-USD, ETH-USD]
    swing:
      channel: swing-trades
      interval_hours: 4
storage:
  driver: sqlite
  path: ./quantbot.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML), nil)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Discord.Token != "abc123" {
		t.Errorf("Token = %q", cfg.Discord.Token)
	}
	if !cfg.Discord.IsOwner("222") || cfg.Discord.IsOwner("333") {
		t.Error("owner check wrong")
	}
	if cfg.Purge.IntervalHours != 6 {
		t.Errorf("purge interval = %d", cfg.Purge.IntervalHours)
	}
	day, ok := cfg.Scan.Strategies["day"]
	if !ok || day.Channel != "day-trades" || len(day.Products) != 2 {
		t.Errorf("day strategy = %+v", day)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get() did not return the committed config")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML+"\nspeed: 9000\n"), nil)
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level field accepted")
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{
			"missing token",
			func(s string) string { return strings.Replace(s, `token: "abc123"`, `token: ""`, 1) },
			"discord.token",
		},
		{
			"unknown strategy",
			func(s string) string { return strings.Replace(s, "    day:", "    scalp:", 1) },
			"unknown strategy",
		},
		{
			"bad feed timeout",
			func(s string) string { return strings.Replace(s, "timeout: 10s", "timeout: fast", 1) },
			"scan.feed.timeout",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, tc.mutate(validYAML)), nil)
			_, err := m.Load()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

// Interval values and blank channels never fail config loading; bad values
// disable the affected worker at wiring time instead.
func TestIntervalAndChannelNeverFatal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(s string) string
	}{
		{"manual-only purge", func(s string) string {
			return strings.Replace(s, "interval_hours: 6", "interval_hours: 0", 1)
		}},
		{"out-of-set purge interval", func(s string) string {
			return strings.Replace(s, "interval_hours: 6", "interval_hours: 5", 1)
		}},
		{"blank strategy channel", func(s string) string {
			return strings.Replace(s, "channel: day-trades", `channel: ""`, 1)
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, tc.mutate(validYAML)), nil)
			if _, err := m.Load(); err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, validYAML), nil)
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Error("wrong config delivered")
		}
	default:
		t.Fatal("nothing delivered")
	}

	// A full buffer drops the oldest update, never blocks.
	m.publish(&Config{})
	newest := &Config{}
	m.publish(newest)
	if got := <-ch; got != newest {
		t.Error("newest update not delivered after overflow")
	}

	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}
}

func TestPrefixDefault(t *testing.T) {
	t.Parallel()

	d := DiscordConfig{}
	if d.Prefix() != "!" {
		t.Errorf("Prefix() = %q", d.Prefix())
	}
	d.CommandPrefix = "?"
	if d.Prefix() != "?" {
		t.Errorf("Prefix() = %q", d.Prefix())
	}
}
