package schedule

import (
	"testing"
	"time"
)

func TestShouldRemindLadder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		remaining time.Duration
		lastSent  time.Duration
		want      ReminderKind
	}{
		// Interval 6h, now 05:00, trigger 06:00: exactly one hour left.
		{name: "hour boundary", remaining: time.Hour, lastSent: 2 * time.Hour, want: RemindHourly},
		// Interval 6h, now 23:45, trigger midnight: final-hour tier.
		{name: "fifteen minute boundary", remaining: 15 * time.Minute, lastSent: time.Hour, want: RemindFineGrained},
		{name: "mid hour no boundary", remaining: 90 * time.Minute, lastSent: 2 * time.Hour, want: RemindNone},
		{name: "first wake after start", remaining: 5*time.Hour + 59*time.Minute, lastSent: 6 * time.Hour, want: RemindNone},
		{name: "crossed into final hour", remaining: 59 * time.Minute, lastSent: 61 * time.Minute, want: RemindFineGrained},
		{name: "fine repeat suppressed", remaining: 14 * time.Minute, lastSent: 15 * time.Minute, want: RemindNone},
		{name: "hourly repeat suppressed", remaining: 4*time.Hour + 30*time.Minute, lastSent: 5 * time.Hour, want: RemindNone},
		{name: "next fine tier", remaining: 30 * time.Minute, lastSent: 45 * time.Minute, want: RemindFineGrained},
		{name: "zero remaining", remaining: 0, lastSent: 15 * time.Minute, want: RemindNone},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ShouldRemind(tt.remaining, tt.lastSent); got != tt.want {
				t.Fatalf("ShouldRemind(%v, %v) = %v, want %v", tt.remaining, tt.lastSent, got, tt.want)
			}
		})
	}
}

func TestShouldRemindNeverBothTiers(t *testing.T) {
	t.Parallel()
	// Sweep a full 6h countdown minute by minute: every instant yields at
	// most one tier, hourly only outside the final hour, fine-grained
	// only inside it.
	last := 6 * time.Hour
	for m := 6*60 - 1; m > 0; m-- {
		remaining := time.Duration(m) * time.Minute
		kind := ShouldRemind(remaining, last)
		switch kind {
		case RemindHourly:
			if remaining < time.Hour {
				t.Fatalf("hourly inside final hour at %v", remaining)
			}
			last = remaining
		case RemindFineGrained:
			if remaining >= time.Hour {
				t.Fatalf("fine-grained outside final hour at %v", remaining)
			}
			last = remaining
		}
	}
}

func TestShouldRemindFiresOncePerBoundary(t *testing.T) {
	t.Parallel()
	var hourly, fine int
	last := 6 * time.Hour
	for m := 6*60 - 1; m > 0; m-- {
		remaining := time.Duration(m) * time.Minute
		switch ShouldRemind(remaining, last) {
		case RemindHourly:
			hourly++
			last = remaining
		case RemindFineGrained:
			fine++
			last = remaining
		}
	}
	// Hour boundaries at 5h..1h remaining, then 45/30/15 minutes.
	if hourly != 5 {
		t.Fatalf("hourly reminders = %d, want 5", hourly)
	}
	if fine != 3 {
		t.Fatalf("fine-grained reminders = %d, want 3", fine)
	}
}
