package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidInterval is returned for any hour value outside the
	// allowed set. Callers treat it as "auto-scheduling disabled", never
	// as a fatal condition.
	ErrInvalidInterval = errors.New("interval hours must be one of 0,1,2,3,4,6,12")

	// ErrDisabledInterval is returned by trigger computation on a
	// manual-only (0 hour) spec.
	ErrDisabledInterval = errors.New("interval is disabled (manual-only)")
)

// ReferenceZone is the fixed zone all trigger boundaries are computed in.
// A constant UTC-7 offset, not the IANA Pacific rules; see the package doc.
var ReferenceZone = time.FixedZone("PDT", -7*60*60)

// allowedHours are the divisors of 24 the purge/scan configuration accepts,
// plus 0 for manual-only workers.
var allowedHours = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 6: true, 12: true}

// IntervalSpec is a validated recurrence interval. The zero value is a
// manual-only spec.
type IntervalSpec struct {
	hours int
	sched cron.Schedule
}

// Validate checks hours against the allowed set and compiles the schedule.
// Because every allowed value divides 24, a cron hour-step anchored at hour 0
// fires exactly on midnight-aligned multiples of the interval.
func Validate(hours int) (IntervalSpec, error) {
	if !allowedHours[hours] {
		return IntervalSpec{}, fmt.Errorf("%w: got %d", ErrInvalidInterval, hours)
	}
	if hours == 0 {
		return IntervalSpec{}, nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(fmt.Sprintf("0 */%d * * *", hours))
	if err != nil {
		// The spec string is built from a validated integer; this is a
		// programming error, not bad input.
		return IntervalSpec{}, fmt.Errorf("compile interval %dh: %w", hours, err)
	}
	if ss, ok := sched.(*cron.SpecSchedule); ok {
		ss.Location = ReferenceZone
	}
	return IntervalSpec{hours: hours, sched: sched}, nil
}

// Hours returns the configured interval in hours (0 for manual-only).
func (s IntervalSpec) Hours() int { return s.hours }

// Manual reports whether auto-scheduling is disabled for this spec.
func (s IntervalSpec) Manual() bool { return s.hours == 0 }

// Interval is the spec expressed as a duration (0 for manual-only).
func (s IntervalSpec) Interval() time.Duration {
	return time.Duration(s.hours) * time.Hour
}

// NextTrigger returns the smallest midnight-aligned boundary strictly after
// now in the reference zone.
func (s IntervalSpec) NextTrigger(now time.Time) (time.Time, error) {
	if s.hours == 0 || s.sched == nil {
		return time.Time{}, ErrDisabledInterval
	}
	return s.sched.Next(now.In(ReferenceZone)), nil
}

// Until returns the non-negative duration from now to the next trigger.
func (s IntervalSpec) Until(now time.Time) (time.Duration, error) {
	next, err := s.NextTrigger(now)
	if err != nil {
		return 0, err
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, nil
}
