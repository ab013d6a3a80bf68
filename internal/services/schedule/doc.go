// Package schedule provides the recurring-worker engine used by quantbot's
// purge and market-scan features.
//
// # Intervals
//
// Workers run on wall-clock-aligned boundaries: an interval of H hours fires
// at midnight + k*H in the reference time zone, never relative to when the
// previous run happened. Repeated relative sleeps accumulate drift; anchoring
// every cycle to the clock does not. Only interval values that divide 24
// evenly are accepted ({1,2,3,4,6,12}); 0 means the worker is manual-only.
//
// The reference zone uses a fixed UTC-7 offset rather than IANA DST rules.
// Boundaries therefore shift by an hour against local wall clocks part of
// the year; that approximation keeps trigger computation deterministic.
//
// # Workers
//
// Each Worker owns a goroutine that suspends until the next boundary (waking
// once a minute to evaluate the reminder ladder), runs its bound action
// exactly once, and re-enters the loop. Stop interrupts a suspend immediately
// but lets an in-flight action finish. A failed action is logged and the
// worker carries on to the next boundary; there is no retry within a cycle.
//
// # Known limitation
//
// Reminder suppression state lives in memory only. A process restart close to
// a boundary can emit a duplicate reminder or miss one. With a single
// non-persistent instance that is accepted rather than worked around.
package schedule
