package schedule

import "time"

// ReminderKind is the ladder tier a reminder should fire at.
type ReminderKind int

const (
	RemindNone ReminderKind = iota
	RemindHourly
	RemindFineGrained
)

func (k ReminderKind) String() string {
	switch k {
	case RemindHourly:
		return "hourly"
	case RemindFineGrained:
		return "fine-grained"
	default:
		return "none"
	}
}

const fineWindow = time.Hour

// ShouldRemind decides whether a reminder is due given the time remaining
// until the next trigger and the remaining time when the previous reminder
// fired (the full interval if none fired yet this cycle).
//
// Outside the final hour a reminder fires once per hour boundary crossed;
// inside it, once per 15-minute boundary. The lastSent marker is how repeats
// within the same tick window are suppressed: a boundary only counts if it
// lies between lastSent and remaining. The two tiers are exclusive, so no
// instant can yield both.
func ShouldRemind(remaining, lastSent time.Duration) ReminderKind {
	if remaining <= 0 {
		return RemindNone
	}
	if remaining < fineWindow {
		if boundaryIndex(remaining, 15*time.Minute) < boundaryIndex(lastSent, 15*time.Minute) {
			return RemindFineGrained
		}
		return RemindNone
	}
	if boundaryIndex(remaining, time.Hour) < boundaryIndex(lastSent, time.Hour) {
		return RemindHourly
	}
	return RemindNone
}

// boundaryIndex buckets a remaining duration by step, counting an exact
// boundary as already crossed (so remaining == 15m belongs to the bucket
// below, and a reminder fires for it).
func boundaryIndex(d, step time.Duration) int64 {
	if d <= 0 {
		return -1
	}
	return int64((d - 1) / step)
}
