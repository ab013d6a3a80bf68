package notify

import (
	"context"
	"strings"
	"testing"

	"quantbot/internal/transport"
	"quantbot/internal/transport/transporttest"
)

func TestNotifyPriorityPrefixes(t *testing.T) {
	t.Parallel()

	adapter := transporttest.New()
	n := New(adapter, nil)
	ctx := context.Background()

	_ = n.Notify(ctx, transport.Notification{ChannelID: "C1", Priority: 9, Text: "feed down"})
	_ = n.Notify(ctx, transport.Notification{ChannelID: "C1", Priority: 5, Text: "slow responses"})
	_ = n.Notify(ctx, transport.Notification{ChannelID: "C1", Priority: 1, Text: "routine"})

	sent := adapter.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent = %d messages", len(sent))
	}
	if !strings.HasPrefix(sent[0].Text, "🚨") {
		t.Errorf("high priority = %q", sent[0].Text)
	}
	if !strings.HasPrefix(sent[1].Text, "⚠️") {
		t.Errorf("medium priority = %q", sent[1].Text)
	}
	if sent[2].Text != "routine" {
		t.Errorf("low priority = %q", sent[2].Text)
	}
}

func TestRecentKeepsNewestLast(t *testing.T) {
	t.Parallel()

	adapter := transporttest.New()
	n := New(adapter, nil)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_ = n.Notify(ctx, transport.Notification{ChannelID: "C1", Text: text})
	}

	got := n.Recent(2)
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "c" {
		t.Fatalf("Recent(2) = %+v", got)
	}
	if all := n.Recent(0); len(all) != 3 {
		t.Fatalf("Recent(0) = %d entries", len(all))
	}
}
