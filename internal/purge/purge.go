// Package purge implements the scheduled channel-cleanup action and its
// reminder notices.
package purge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"quantbot/internal/services/schedule"
	"quantbot/internal/storage"
	"quantbot/internal/transport"
)

type actorKey struct{}

// WithActor marks ctx as a manual run initiated by the given user. The
// audit row records the actor; scheduled runs have none.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func actorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok
}

// Purger is the Runnable bound to the purge worker. Each run resolves the
// target channel, checks the bot still holds manage-messages there, deletes
// what it can, posts a summary, and writes an audit row.
type Purger struct {
	adapter     transport.Adapter
	store       storage.Store // nil when persistence is disabled
	log         *slog.Logger
	channelName string

	mu        sync.Mutex
	channelID string
}

func New(channelName string, adapter transport.Adapter, store storage.Store, log *slog.Logger) *Purger {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Purger{
		adapter:     adapter,
		store:       store,
		log:         log,
		channelName: channelName,
	}
}

func (p *Purger) Run(ctx context.Context) error {
	channelID, err := p.channel(ctx)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	if !p.adapter.HasPermission(ctx, channelID, transport.CapManageMessages) {
		err := fmt.Errorf("purge: missing %s in channel %s", transport.CapManageMessages, channelID)
		p.audit(ctx, channelID, 0, err)
		return err
	}

	deleted, err := p.adapter.PurgeChannel(ctx, channelID)
	p.audit(ctx, channelID, deleted, err)
	if err != nil {
		return fmt.Errorf("purge channel %s: %w", channelID, err)
	}

	p.log.Info("channel purged",
		slog.String("channel", p.channelName),
		slog.Int("deleted", deleted))
	if _, err := p.adapter.SendText(ctx, channelID,
		fmt.Sprintf("🧹 Purged %d message(s) from #%s", deleted, p.channelName)); err != nil {
		p.log.Warn("purge summary not sent", slog.Any("err", err))
	}
	return nil
}

// Remind posts the countdown notice the worker's reminder ladder asks for.
func (p *Purger) Remind(ctx context.Context, kind schedule.ReminderKind, remaining time.Duration) {
	channelID, err := p.channel(ctx)
	if err != nil {
		p.log.Warn("purge reminder skipped", slog.Any("err", err))
		return
	}

	var text string
	switch kind {
	case schedule.RemindFineGrained:
		text = fmt.Sprintf("⏳ #%s will be purged in %d minutes", p.channelName, int(remaining.Minutes()))
	case schedule.RemindHourly:
		hours := int(remaining.Hours())
		unit := "hours"
		if hours == 1 {
			unit = "hour"
		}
		text = fmt.Sprintf("🧹 #%s will be purged in %d %s", p.channelName, hours, unit)
	default:
		return
	}

	if _, err := p.adapter.SendText(ctx, channelID, text); err != nil {
		p.log.Warn("purge reminder not sent", slog.Any("err", err))
	}
}

func (p *Purger) channel(ctx context.Context) (string, error) {
	p.mu.Lock()
	cached := p.channelID
	p.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	id, err := p.adapter.ChannelByName(ctx, p.channelName)
	if err != nil {
		return "", fmt.Errorf("resolve channel %q: %w", p.channelName, err)
	}
	p.mu.Lock()
	p.channelID = id
	p.mu.Unlock()
	return id, nil
}

func (p *Purger) audit(ctx context.Context, channelID string, deleted int, runErr error) {
	if p.store == nil {
		return
	}
	e := storage.PurgeEntry{
		At:        time.Now(),
		ChannelID: channelID,
		Deleted:   deleted,
		Cause:     "schedule",
	}
	if actor, ok := actorFrom(ctx); ok {
		e.Cause = "manual"
		e.Actor = actor
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	if err := p.store.AppendPurge(ctx, e); err != nil {
		p.log.Warn("purge audit not recorded", slog.Any("err", err))
	}
}
