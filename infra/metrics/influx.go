package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/fleetvolt/battsched/core/metrics"
	"github.com/fleetvolt/battsched/infra/logger"
)

// InfluxSink writes agent events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg coremetrics.Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg coremetrics.Config) coremetrics.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScheduleUpdate writes one schedule replacement attempt.
func (s *InfluxSink) RecordScheduleUpdate(ev coremetrics.ScheduleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_update").
		AddTag("device_id", ev.DeviceID).
		AddTag("source", ev.Source).
		AddTag("accepted", strconv.FormatBool(ev.Accepted)).
		AddField("entries", ev.Entries).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordExecution writes one dispatched command.
func (s *InfluxSink) RecordExecution(ev coremetrics.ExecutionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("execution_event").
		AddTag("device_id", ev.DeviceID).
		AddTag("mode", ev.Mode.String()).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("entry_index", ev.EntryIndex).
		AddField("requested_kw", round3(ev.RequestedKW)).
		AddField("actual_kw", round3(ev.ActualKW)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPoll writes one fetch attempt.
func (s *InfluxSink) RecordPoll(ev coremetrics.PollEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("schedule_poll").
		AddTag("device_id", ev.DeviceID).
		AddTag("success", strconv.FormatBool(ev.Success)).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
