package transport

import (
	"context"
	"time"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateReaction UpdateKind = "reaction"
)

// Update is a single inbound event from the chat platform.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Reaction *Reaction
}

type Message struct {
	ID         string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string
	Bot        bool
}

// Reaction is an emoji added to a message by a user.
type Reaction struct {
	MessageID string
	ChannelID string
	UserID    string
	Emoji     string
}

// MessageRef identifies a message the bot has sent.
type MessageRef struct {
	ChannelID string
	MessageID string
}

type Notification struct {
	ChannelID string
	Priority  int // 0 low .. 10 high
	Text      string
}

// Capability names a channel permission the bot may need.
type Capability string

const (
	CapSendMessages   Capability = "send_messages"
	CapManageMessages Capability = "manage_messages"
	CapAddReactions   Capability = "add_reactions"
)

// Adapter is the chat-platform boundary. The core never talks to the
// platform SDK directly; everything goes through this interface so tests
// can substitute a fake.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, channelID string, text string) (MessageRef, error)

	// ChannelByName resolves a text channel by its configured name.
	ChannelByName(ctx context.Context, name string) (string, error)

	// HasPermission reports whether the bot holds the capability in a channel.
	HasPermission(ctx context.Context, channelID string, cap Capability) bool

	// AddReaction adds an emoji to a previously sent message.
	AddReaction(ctx context.Context, ref MessageRef, emoji string) error

	// AwaitReaction blocks until someone reacts to ref with emoji, the
	// timeout elapses, or ctx is cancelled. It is a single cancellable
	// wait, not a poll loop.
	AwaitReaction(ctx context.Context, ref MessageRef, emoji string, timeout time.Duration) (Reaction, error)

	// PurgeChannel deletes recent messages in a channel and returns how
	// many were removed.
	PurgeChannel(ctx context.Context, channelID string) (int, error)
}
