// Package app assembles the agent and its connectors from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/fleetvolt/battsched/config"
	"github.com/fleetvolt/battsched/core/agent"
	"github.com/fleetvolt/battsched/core/executor"
	coremetrics "github.com/fleetvolt/battsched/core/metrics"
	"github.com/fleetvolt/battsched/core/model"
	corestore "github.com/fleetvolt/battsched/core/store"
	"github.com/fleetvolt/battsched/infra/api"
	"github.com/fleetvolt/battsched/infra/logger"
	"github.com/fleetvolt/battsched/infra/metrics"
	"github.com/fleetvolt/battsched/infra/mqtt"
	"github.com/fleetvolt/battsched/infra/store"
	"github.com/fleetvolt/battsched/internal/eventbus"
)

// Service orchestrates the distribution agent and its connectors.
type Service struct {
	Agent       *agent.Agent
	sub         *mqtt.Subscriber
	st          corestore.Store
	bus         *eventbus.Bus[model.ScheduleMessage]
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var st corestore.Store
	switch cfg.Store.Backend {
	case "memory":
		st = corestore.NewMemoryStore()
	default:
		sq, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		st = sq
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New[model.ScheduleMessage]()

	// The broker is an optional push channel. Failing to reach it must not
	// stop the agent; polling still distributes schedules.
	var sub *mqtt.Subscriber
	if cfg.MQTT.Broker != "" {
		s, err := mqtt.NewSubscriber(cfg.MQTT, cfg.Agent.DeviceID, bus, logger.New("mqtt"))
		if err != nil {
			logg.Errorf("mqtt subscriber unavailable, poll only: %v", err)
		} else {
			sub = s
		}
	}

	client := api.New(cfg.API, logger.New("api"))
	exec := executor.NewSimExecutor(cfg.Agent.DeviceID, logger.New("executor"))
	ag, err := agent.New(cfg.Agent, client, client, st, exec,
		bus, logger.New("agent"), sink)
	if err != nil {
		if sub != nil {
			sub.Disconnect()
		}
		_ = st.Close()
		return nil, fmt.Errorf("agent: %w", err)
	}

	return &Service{
		Agent:       ag,
		sub:         sub,
		st:          st,
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.Agent.Run(ctx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.sub != nil {
		s.sub.Disconnect()
	}
	s.bus.Close()
	return s.st.Close()
}
