// Package storage persists operational history: emitted trading signals and
// purge runs. Scheduling state is deliberately NOT stored here; schedules are
// rebuilt from configuration at every start.
package storage
