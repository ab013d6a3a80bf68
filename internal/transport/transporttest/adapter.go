// Package transporttest provides an in-memory Adapter for tests.
package transporttest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quantbot/internal/transport"
)

// Adapter records outbound calls and lets tests script channel lookups,
// permissions, reactions, and purge results.
type Adapter struct {
	mu sync.Mutex

	Channels    map[string]string // name -> id
	Permissions map[string]bool   // channelID+"/"+capability -> allowed
	PurgeCounts map[string]int    // channelID -> messages removed per purge

	SendErr  error
	PurgeErr error

	sent      []SentMessage
	purged    []string
	reactions []transport.MessageRef
	nextID    int

	pending chan transport.Reaction
}

type SentMessage struct {
	ChannelID string
	Text      string
}

func New() *Adapter {
	return &Adapter{
		Channels:    map[string]string{},
		Permissions: map[string]bool{},
		PurgeCounts: map[string]int{},
		pending:     make(chan transport.Reaction, 8),
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error                               { return nil }

func (a *Adapter) SendText(ctx context.Context, channelID, text string) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SendErr != nil {
		return transport.MessageRef{}, a.SendErr
	}
	a.nextID++
	a.sent = append(a.sent, SentMessage{ChannelID: channelID, Text: text})
	return transport.MessageRef{ChannelID: channelID, MessageID: strconv.Itoa(a.nextID)}, nil
}

func (a *Adapter) ChannelByName(ctx context.Context, name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.Channels[name]
	if !ok {
		return "", fmt.Errorf("channel %q not found", name)
	}
	return id, nil
}

func (a *Adapter) HasPermission(ctx context.Context, channelID string, cap transport.Capability) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	allowed, ok := a.Permissions[channelID+"/"+string(cap)]
	if !ok {
		return true
	}
	return allowed
}

func (a *Adapter) AddReaction(ctx context.Context, ref transport.MessageRef, emoji string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reactions = append(a.reactions, ref)
	return nil
}

// React feeds a reaction to the next AwaitReaction call.
func (a *Adapter) React(r transport.Reaction) { a.pending <- r }

func (a *Adapter) AwaitReaction(ctx context.Context, ref transport.MessageRef, emoji string, timeout time.Duration) (transport.Reaction, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-a.pending:
		return r, nil
	case <-t.C:
		return transport.Reaction{}, context.DeadlineExceeded
	case <-ctx.Done():
		return transport.Reaction{}, ctx.Err()
	}
}

func (a *Adapter) PurgeChannel(ctx context.Context, channelID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PurgeErr != nil {
		return 0, a.PurgeErr
	}
	a.purged = append(a.purged, channelID)
	return a.PurgeCounts[channelID], nil
}

// Sent returns a copy of every message sent so far.
func (a *Adapter) Sent() []SentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]SentMessage(nil), a.sent...)
}

// Purged returns the channel IDs purged so far, in order.
func (a *Adapter) Purged() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.purged...)
}
