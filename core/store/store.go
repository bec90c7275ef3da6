// Package store defines the durable schedule cache shared by the agent and
// the distribution tooling: the current ACTIVE schedule per device plus an
// append-only execution history.
package store

import (
	"context"
	"errors"

	"github.com/fleetvolt/battsched/core/model"
)

// ErrNotFound is returned when a device has no active schedule.
var ErrNotFound = errors.New("no active schedule")

// Store persists schedules and execution records. PutActive must be atomic:
// the previous ACTIVE schedule for the device becomes INACTIVE in the same
// operation that activates the new one, so there is never a window with two
// or zero active schedules.
type Store interface {
	PutActive(ctx context.Context, sched model.Schedule) error
	GetActive(ctx context.Context, deviceID string) (model.Schedule, error)
	RecordExecution(ctx context.Context, deviceID string, rec model.ExecutionRecord) error
	// History returns execution records for the device, most recent first.
	// A non-positive limit returns everything.
	History(ctx context.Context, deviceID string, limit int) ([]model.ExecutionRecord, error)
	Close() error
}
