package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/fleetvolt/battsched/core/metrics"
)

// PromSink records agent events in Prometheus metrics.
type PromSink struct {
	executions      *prometheus.CounterVec
	scheduleUpdates *prometheus.CounterVec
	pollAttempts    *prometheus.CounterVec
	activeEntries   *prometheus.GaugeVec
}

// NewPromSink registers agent metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	executions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_executions_total",
		Help: "Total number of dispatched charge/discharge commands",
	}, []string{"device_id", "mode", "status"})
	scheduleUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_updates_total",
		Help: "Total number of schedule replacement attempts",
	}, []string{"device_id", "source", "accepted"})
	pollAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_poll_attempts_total",
		Help: "Total number of schedule fetch attempts against the authority",
	}, []string{"device_id", "success"})
	activeEntries := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "active_schedule_entries",
		Help: "Number of entries in the currently active schedule",
	}, []string{"device_id"})

	if err := reg.Register(executions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			executions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(scheduleUpdates); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			scheduleUpdates = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(pollAttempts); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			pollAttempts = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(activeEntries); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			activeEntries = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		executions:      executions,
		scheduleUpdates: scheduleUpdates,
		pollAttempts:    pollAttempts,
		activeEntries:   activeEntries,
	}, nil
}

// RecordScheduleUpdate counts the replacement attempt and, when accepted,
// updates the active entry gauge.
func (s *PromSink) RecordScheduleUpdate(ev coremetrics.ScheduleEvent) error {
	s.scheduleUpdates.WithLabelValues(ev.DeviceID, ev.Source, strconv.FormatBool(ev.Accepted)).Inc()
	if ev.Accepted {
		s.activeEntries.WithLabelValues(ev.DeviceID).Set(float64(ev.Entries))
	}
	return nil
}

// RecordExecution counts one dispatched command.
func (s *PromSink) RecordExecution(ev coremetrics.ExecutionEvent) error {
	status := "success"
	if !ev.Success {
		status = "failed"
	}
	s.executions.WithLabelValues(ev.DeviceID, ev.Mode.String(), status).Inc()
	return nil
}

// RecordPoll counts one fetch attempt.
func (s *PromSink) RecordPoll(ev coremetrics.PollEvent) error {
	s.pollAttempts.WithLabelValues(ev.DeviceID, strconv.FormatBool(ev.Success)).Inc()
	return nil
}
