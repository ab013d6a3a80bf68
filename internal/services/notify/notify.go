// Package notify is a thin fan-out layer over the chat adapter used by
// workers and command handlers to post user-facing messages.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"quantbot/internal/transport"
)

type Service struct {
	adapter transport.Adapter
	log     *slog.Logger

	mu      sync.Mutex
	history []transport.Notification
}

func New(adapter transport.Adapter, log *slog.Logger) *Service {
	return &Service{adapter: adapter, log: log}
}

func (n *Service) Notify(ctx context.Context, noti transport.Notification) error {
	prefix := ""
	switch {
	case noti.Priority >= 8:
		prefix = "🚨 "
	case noti.Priority >= 5:
		prefix = "⚠️ "
	}
	_, err := n.adapter.SendText(ctx, noti.ChannelID, prefix+noti.Text)
	if err != nil {
		if n.log != nil {
			n.log.Warn("notification send failed",
				slog.String("channel_id", noti.ChannelID),
				slog.Any("err", err))
		}
	} else if n.log != nil {
		n.log.Debug("notification sent",
			slog.String("channel_id", noti.ChannelID),
			slog.Int("priority", noti.Priority))
	}
	n.appendHistory(noti)
	return err
}

func (n *Service) appendHistory(x transport.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.history = append(n.history, x)
	if len(n.history) > 300 {
		n.history = n.history[len(n.history)-300:]
	}
}

// Recent returns the most recent notifications, newest last.
func (n *Service) Recent(limit int) []transport.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if limit <= 0 || limit > len(n.history) {
		limit = len(n.history)
	}
	out := make([]transport.Notification, limit)
	copy(out, n.history[len(n.history)-limit:])
	return out
}
