// Package metrics defines the observability events emitted by the agent and
// the sink interfaces implemented by the infra layer.
package metrics

import (
	"time"

	"github.com/fleetvolt/battsched/core/model"
)

// ScheduleEvent records the outcome of one validate-then-replace attempt.
type ScheduleEvent struct {
	DeviceID string
	Source   string
	Entries  int
	Accepted bool
	Time     time.Time
}

// ExecutionEvent records one dispatched command.
type ExecutionEvent struct {
	DeviceID    string
	EntryIndex  int
	Mode        model.Mode
	RequestedKW float64
	ActualKW    float64
	Success     bool
	Time        time.Time
}

// PollEvent records one schedule fetch attempt against the authority.
type PollEvent struct {
	DeviceID string
	Success  bool
	Error    string
	Time     time.Time
}

// Sink records agent events for observability purposes.
type Sink interface {
	RecordScheduleUpdate(ev ScheduleEvent) error
	RecordExecution(ev ExecutionEvent) error
	RecordPoll(ev PollEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordScheduleUpdate(ScheduleEvent) error { return nil }
func (NopSink) RecordExecution(ExecutionEvent) error     { return nil }
func (NopSink) RecordPoll(PollEvent) error               { return nil }
