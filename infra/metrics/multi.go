package metrics

import coremetrics "github.com/fleetvolt/battsched/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScheduleUpdate forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordScheduleUpdate(ev coremetrics.ScheduleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordScheduleUpdate(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordExecution forwards the event to all sinks.
func (m *MultiSink) RecordExecution(ev coremetrics.ExecutionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordExecution(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPoll forwards the event to all sinks.
func (m *MultiSink) RecordPoll(ev coremetrics.PollEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPoll(ev); err != nil {
			return err
		}
	}
	return nil
}
