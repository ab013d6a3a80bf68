// Package core wires configuration, transport, workers, and commands into
// the running bot.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quantbot/internal/adapters/discord"
	"quantbot/internal/config"
	"quantbot/internal/market"
	"quantbot/internal/purge"
	"quantbot/internal/runtime/supervisor"
	"quantbot/internal/services/confirm"
	"quantbot/internal/services/logging"
	"quantbot/internal/services/notify"
	"quantbot/internal/services/schedule"
	"quantbot/internal/storage"
	"quantbot/internal/transport"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  *slog.Logger
	logs *logging.Service

	adapter  transport.Adapter
	registry *schedule.Registry
	gate     *confirm.Gate
	router   *Router
	notif    *notify.Service
	store    storage.Store

	scanners map[string]*market.Scanner
	updates  chan transport.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, slog.Default())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	adapter, err := discord.New(cfg.Discord.Token, slog.Default().With(slog.String("comp", "discord")))
	if err != nil {
		return nil, err
	}

	logs, log := logging.New(loggingConfig(cfg), adapter)
	log = log.With(slog.String("comp", "app"))

	store, err := storage.Open(storageConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	app := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logs,
		adapter:  adapter,
		registry: schedule.NewRegistry(),
		notif:    notify.New(adapter, log.With(slog.String("comp", "notify"))),
		store:    store,
		scanners: map[string]*market.Scanner{},
		updates:  make(chan transport.Update, 64),
	}
	app.gate = confirm.NewGate(confirm.Options{
		Logger: log.With(slog.String("comp", "confirm")),
	})

	if err := app.registerWorkers(cfg); err != nil {
		return nil, err
	}
	app.router = NewRouter(cfgm, app.registry, app.gate, adapter, app.scanners, store,
		log.With(slog.String("comp", "commands")))
	return app, nil
}

// registerWorkers builds the purge worker and one scan worker per configured
// strategy. A blank channel skips registration entirely; an invalid interval
// disables auto-scheduling (manual-only) rather than failing startup.
func (a *App) registerWorkers(cfg *config.Config) error {
	if cfg.Purge.Channel != "" {
		spec := a.specOrManual(purgeWorkerName, cfg.Purge.IntervalHours)
		p := purge.New(cfg.Purge.Channel, a.adapter, a.store, a.log.With(slog.String("comp", "purge")))
		w := schedule.NewWorker(purgeWorkerName, spec, p, schedule.WorkerOptions{
			Remind: p.Remind,
			Logger: a.log,
		})
		if err := a.registry.Register(w); err != nil {
			return err
		}
	}

	if len(cfg.Scan.Strategies) == 0 {
		return nil
	}

	timeout, err := config.ParseDurationField("scan.feed.timeout", cfg.Scan.Feed.Timeout)
	if err != nil {
		return err
	}
	feed := market.NewExchangeFeed(market.FeedConfig{
		BaseURL:    cfg.Scan.Feed.BaseURL,
		RatePerSec: cfg.Scan.Feed.RatePerSec,
		Timeout:    timeout,
	}, a.log.With(slog.String("comp", "feed")))

	// Iterate the fixed key order so registry listing is stable. A strategy
	// with a blank channel is never registered: queries against it answer
	// "not set up".
	for _, key := range market.StrategyKeys {
		sc, ok := cfg.Scan.Strategies[key]
		if !ok || sc.Channel == "" {
			continue
		}
		spec := a.specOrManual(scanWorkerName(key), sc.IntervalHours)
		strat := market.NewStrategy(key, sc.Products)
		scanner := market.NewScanner(strat, sc.Channel, feed, a.adapter, a.store,
			a.log.With(slog.String("comp", "scan"), slog.String("strategy", key)))
		a.scanners[key] = scanner

		w := schedule.NewWorker(scanWorkerName(key), spec, scanner, schedule.WorkerOptions{Logger: a.log})
		if err := a.registry.Register(w); err != nil {
			return err
		}
	}
	return nil
}

// specOrManual validates an interval, falling back to manual-only when the
// value is outside the allowed set. Bad configuration disables a feature, it
// never takes the process down.
func (a *App) specOrManual(name string, hours int) schedule.IntervalSpec {
	spec, err := schedule.Validate(hours)
	if err != nil {
		a.log.Warn("auto-scheduling disabled",
			slog.String("worker", name),
			slog.Int("interval_hours", hours),
			slog.Any("err", err))
		return schedule.IntervalSpec{}
	}
	return spec
}

// Start connects the gateway, starts every worker, and launches the config
// watcher and update pump. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.bindLogChannel(a.sup.Context(), a.cfgm.Get())

	a.registry.StartAll(a.sup.Context())

	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", a.reloadLoop)
	a.sup.Go("updates.pump", a.pump)

	a.announce(a.sup.Context(), 3, "quantbot online")
	a.log.Info("started", slog.Any("workers", a.registry.Names()))
	return nil
}

// Stop shuts everything down in dependency order: workers first (waiting
// for in-flight actions), then the gateway, then the supervised loops.
func (a *App) Stop(ctx context.Context) error {
	a.announce(ctx, 3, "quantbot shutting down")
	a.registry.StopAll()
	_ = a.adapter.Stop(ctx)
	err := a.sup.Stop(ctx)
	if a.store != nil {
		_ = a.store.Close()
	}
	a.logs.Close()
	return err
}

func (a *App) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-a.updates:
			if u.Kind != transport.UpdateMessage || u.Message == nil {
				continue
			}
			msg := u.Message
			// Each command runs in its own goroutine: a confirmation
			// wait must not stall the pump.
			a.sup.Go("command", func(ctx context.Context) error {
				a.router.Handle(ctx, msg)
				return nil
			})
		}
	}
}

// reloadLoop applies hot-reloadable settings from published configs.
// Logging changes take effect immediately; schedule and channel changes
// need a restart and are logged as such.
func (a *App) reloadLoop(ctx context.Context) error {
	ch := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-ch:
			if !ok {
				return nil
			}
			a.logs.Apply(loggingConfig(cfg))
			a.bindLogChannel(ctx, cfg)
			a.log.Info("config applied; worker and storage changes take effect on restart")
		}
	}
}

func (a *App) bindLogChannel(ctx context.Context, cfg *config.Config) {
	if cfg == nil || !cfg.Logging.Discord.Enabled || cfg.Logging.Discord.Channel == "" {
		a.logs.SetDiscordTarget("")
		return
	}
	id, err := a.adapter.ChannelByName(ctx, cfg.Logging.Discord.Channel)
	if err != nil {
		a.log.Warn("log channel not found",
			slog.String("channel", cfg.Logging.Discord.Channel), slog.Any("err", err))
		return
	}
	a.logs.SetDiscordTarget(id)
}

func (a *App) announce(ctx context.Context, priority int, text string) {
	cfg := a.cfgm.Get()
	if cfg == nil || !cfg.Logging.Discord.Enabled || cfg.Logging.Discord.Channel == "" {
		return
	}
	id, err := a.adapter.ChannelByName(ctx, cfg.Logging.Discord.Channel)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = a.notif.Notify(cctx, transport.Notification{ChannelID: id, Priority: priority, Text: text})
}

func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logging.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Discord: logging.DiscordConfig{
			Enabled:    cfg.Logging.Discord.Enabled,
			MinLevel:   cfg.Logging.Discord.MinLevel,
			RatePerSec: cfg.Logging.Discord.RatePerSec,
		},
	}
}

func storageConfig(cfg *config.Config) storage.Config {
	if cfg.Storage == nil {
		return storage.Config{}
	}
	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}
}
