// Package discord implements the transport.Adapter boundary on top of
// discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"quantbot/internal/transport"
)

// ErrNoReaction is returned when AwaitReaction times out.
var ErrNoReaction = errors.New("no reaction before deadline")

const bulkDeleteBatch = 100

// Bulk delete rejects messages older than two weeks; those are removed
// one by one.
const bulkDeleteMaxAge = 14 * 24 * time.Hour

type waiterKey struct {
	messageID string
	emoji     string
}

// Adapter is the discordgo-backed transport.
type Adapter struct {
	session *discordgo.Session
	log     *slog.Logger

	ctx context.Context
	out chan<- transport.Update

	mu      sync.Mutex
	waiters map[waiterKey]chan transport.Reaction
}

func New(token string, log *slog.Logger) (*Adapter, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	return &Adapter{
		session: session,
		log:     log,
		waiters: make(map[waiterKey]chan transport.Reaction),
	}, nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error {
	a.ctx = ctx
	a.out = out

	a.session.AddHandler(a.onMessage)
	a.session.AddHandler(a.onReaction)

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.log.Info("discord gateway connected",
		slog.String("user", a.session.State.User.Username))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	return a.session.Close()
}

func (a *Adapter) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	a.publish(transport.Update{
		Kind: transport.UpdateMessage,
		Message: &transport.Message{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			AuthorID:   m.Author.ID,
			AuthorName: m.Author.Username,
			Content:    m.Content,
			Bot:        m.Author.Bot,
		},
	})
}

func (a *Adapter) onReaction(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == s.State.User.ID {
		return
	}
	reaction := transport.Reaction{
		MessageID: r.MessageID,
		ChannelID: r.ChannelID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.Name,
	}

	a.mu.Lock()
	ch, ok := a.waiters[waiterKey{messageID: r.MessageID, emoji: r.Emoji.Name}]
	a.mu.Unlock()
	if ok {
		select {
		case ch <- reaction:
		default:
		}
	}

	a.publish(transport.Update{Kind: transport.UpdateReaction, Reaction: &reaction})
}

func (a *Adapter) publish(u transport.Update) {
	select {
	case a.out <- u:
	case <-a.ctx.Done():
	}
}

func (a *Adapter) SendText(ctx context.Context, channelID, text string) (transport.MessageRef, error) {
	msg, err := a.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return transport.MessageRef{}, fmt.Errorf("discord: send to %s: %w", channelID, err)
	}
	return transport.MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

// ChannelByName looks up a guild text channel by name across every guild
// the bot is in. State is populated from gateway guild-create events.
func (a *Adapter) ChannelByName(ctx context.Context, name string) (string, error) {
	for _, guild := range a.session.State.Guilds {
		g, err := a.session.State.Guild(guild.ID)
		if err != nil {
			continue
		}
		for _, ch := range g.Channels {
			if ch.Type == discordgo.ChannelTypeGuildText && ch.Name == name {
				return ch.ID, nil
			}
		}
	}
	return "", fmt.Errorf("discord: channel %q not found in any guild", name)
}

func (a *Adapter) HasPermission(ctx context.Context, channelID string, cap transport.Capability) bool {
	var bit int64
	switch cap {
	case transport.CapSendMessages:
		bit = discordgo.PermissionSendMessages
	case transport.CapManageMessages:
		bit = discordgo.PermissionManageMessages
	case transport.CapAddReactions:
		bit = discordgo.PermissionAddReactions
	default:
		return false
	}
	perms, err := a.session.State.UserChannelPermissions(a.session.State.User.ID, channelID)
	if err != nil {
		a.log.Warn("permission lookup failed",
			slog.String("channel", channelID), slog.Any("err", err))
		return false
	}
	return perms&bit != 0
}

func (a *Adapter) AddReaction(ctx context.Context, ref transport.MessageRef, emoji string) error {
	if err := a.session.MessageReactionAdd(ref.ChannelID, ref.MessageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: add reaction: %w", err)
	}
	return nil
}

func (a *Adapter) AwaitReaction(ctx context.Context, ref transport.MessageRef, emoji string, timeout time.Duration) (transport.Reaction, error) {
	key := waiterKey{messageID: ref.MessageID, emoji: emoji}
	ch := make(chan transport.Reaction, 1)

	a.mu.Lock()
	a.waiters[key] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, key)
		a.mu.Unlock()
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-ch:
		return r, nil
	case <-t.C:
		return transport.Reaction{}, ErrNoReaction
	case <-ctx.Done():
		return transport.Reaction{}, ctx.Err()
	}
}

// PurgeChannel deletes the channel's recent history. Messages young enough
// for the bulk endpoint go in batches; older ones are deleted one at a time.
func (a *Adapter) PurgeChannel(ctx context.Context, channelID string) (int, error) {
	deleted := 0
	beforeID := ""
	cutoff := time.Now().Add(-bulkDeleteMaxAge)

	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		msgs, err := a.session.ChannelMessages(channelID, bulkDeleteBatch, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return deleted, fmt.Errorf("discord: list messages: %w", err)
		}
		if len(msgs) == 0 {
			return deleted, nil
		}
		beforeID = msgs[len(msgs)-1].ID

		var bulk []string
		var single []string
		for _, m := range msgs {
			if m.Timestamp.After(cutoff) {
				bulk = append(bulk, m.ID)
			} else {
				single = append(single, m.ID)
			}
		}

		if len(bulk) == 1 {
			single = append(single, bulk[0])
			bulk = nil
		}
		if len(bulk) > 0 {
			if err := a.session.ChannelMessagesBulkDelete(channelID, bulk, discordgo.WithContext(ctx)); err != nil {
				return deleted, fmt.Errorf("discord: bulk delete: %w", err)
			}
			deleted += len(bulk)
		}
		for _, id := range single {
			if err := a.session.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)); err != nil {
				return deleted, fmt.Errorf("discord: delete message: %w", err)
			}
			deleted++
		}
	}
}
