// Package agent implements the device-side distribution loop: it receives
// schedules by poll and push, validates them, caches them durably and drives
// the executor when an entry window opens.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetvolt/battsched/core/executor"
	"github.com/fleetvolt/battsched/core/logger"
	"github.com/fleetvolt/battsched/core/metrics"
	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/core/schedule"
	"github.com/fleetvolt/battsched/core/store"
	"github.com/fleetvolt/battsched/internal/eventbus"
)

// ErrNoSchedule is reported by a Fetcher when the authority has no schedule
// published for the device.
var ErrNoSchedule = errors.New("no schedule published for device")

// SourcePoll labels schedules obtained by polling the authority.
const SourcePoll = "poll"

// Fetcher retrieves the schedule for a device from the authority.
type Fetcher interface {
	FetchSchedule(ctx context.Context, deviceID, date string) ([]model.RawEntry, error)
}

// AckSender reports execution acknowledgements back to the authority.
type AckSender interface {
	SendAck(ctx context.Context, ack model.Acknowledgement) error
}

type arrival struct {
	entries []model.RawEntry
	source  string
}

// Agent is the schedule distribution and execution loop for one device.
//
// Three activities run concurrently: poll, execute and health reporting.
// Schedule arrivals from both poll and push funnel through channels consumed
// by the Run loop, which is the only writer of the active schedule and the
// dispatch-tracking state. The execute tick reads that state under the same
// mutex, so it always observes a complete schedule.
type Agent struct {
	cfg       Config
	fetcher   Fetcher
	acks      AckSender
	store     store.Store
	exec      executor.Executor
	validator *schedule.Validator
	bus       *eventbus.Bus[model.ScheduleMessage]
	log       logger.Logger
	sink      metrics.Sink

	pollEvery   time.Duration
	tickEvery   time.Duration
	healthEvery time.Duration
	now         func() time.Time

	pollResults chan arrival

	mu         sync.Mutex
	active     *model.Schedule
	dispatched map[int]bool
}

// New creates an Agent. bus may be nil when no push channel is configured;
// log and sink may be nil.
func New(cfg Config, fetcher Fetcher, acks AckSender, st store.Store, exec executor.Executor,
	bus *eventbus.Bus[model.ScheduleMessage], log logger.Logger, sink metrics.Sink) (*Agent, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || acks == nil || st == nil || exec == nil {
		return nil, fmt.Errorf("agent: nil dependency provided to New")
	}
	if log == nil {
		log = nopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Agent{
		cfg:         cfg,
		fetcher:     fetcher,
		acks:        acks,
		store:       st,
		exec:        exec,
		validator:   schedule.NewValidator(),
		bus:         bus,
		log:         log,
		sink:        sink,
		pollEvery:   cfg.PollInterval(),
		tickEvery:   cfg.TickInterval(),
		healthEvery: cfg.HealthInterval(),
		now:         time.Now,
		pollResults: make(chan arrival, 1),
	}, nil
}

// Active returns a snapshot of the currently active schedule, or nil.
func (a *Agent) Active() *model.Schedule {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return nil
	}
	cp := *a.active
	return &cp
}

// Run drives the agent until the context is canceled. The cached schedule is
// reloaded from the store before any network activity so the device keeps
// executing across restarts even when the authority is unreachable.
func (a *Agent) Run(ctx context.Context) error {
	a.loadCached(ctx)

	var push <-chan model.ScheduleMessage
	if a.bus != nil {
		push = a.bus.Subscribe()
		defer a.bus.Unsubscribe(push)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); a.pollLoop(ctx) }()
	go func() { defer wg.Done(); a.executeLoop(ctx) }()
	go func() { defer wg.Done(); a.healthLoop(ctx) }()

	for {
		select {
		case msg, ok := <-push:
			if !ok {
				push = nil
				continue
			}
			if msg.DeviceID != a.cfg.DeviceID {
				a.log.Debugf("discarding schedule push for %s", msg.DeviceID)
				continue
			}
			a.apply(ctx, msg.Schedule, msg.Source)
		case arr := <-a.pollResults:
			a.apply(ctx, arr.entries, arr.source)
		case <-ctx.Done():
			wg.Wait()
			return nil
		}
	}
}

func (a *Agent) loadCached(ctx context.Context) {
	sched, err := a.store.GetActive(ctx, a.cfg.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		a.log.Infof("no cached schedule for %s", a.cfg.DeviceID)
		return
	}
	if err != nil {
		a.log.Errorf("load cached schedule: %v", err)
		return
	}
	a.mu.Lock()
	a.active = &sched
	a.dispatched = make(map[int]bool, len(sched.Entries))
	a.mu.Unlock()
	a.log.Infof("loaded cached schedule: %d entries (version %s)", len(sched.Entries), sched.Version)
}

func (a *Agent) pollLoop(ctx context.Context) {
	a.poll(ctx)
	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// poll fetches the schedule and hands the result to the Run loop. Transport
// failures keep the cached schedule in force until the next cycle.
func (a *Agent) poll(ctx context.Context) {
	entries, err := a.fetcher.FetchSchedule(ctx, a.cfg.DeviceID, "")
	if err != nil {
		if errors.Is(err, ErrNoSchedule) {
			a.log.Warnf("no schedule found for device %s", a.cfg.DeviceID)
		} else {
			a.log.Errorf("poll schedule: %v", err)
		}
		_ = a.sink.RecordPoll(metrics.PollEvent{
			DeviceID: a.cfg.DeviceID, Success: false, Error: err.Error(), Time: a.now(),
		})
		return
	}
	_ = a.sink.RecordPoll(metrics.PollEvent{DeviceID: a.cfg.DeviceID, Success: true, Time: a.now()})
	if len(entries) == 0 {
		return
	}
	select {
	case a.pollResults <- arrival{entries: entries, source: SourcePoll}:
	case <-ctx.Done():
	}
}

// apply is the single validate-then-replace path shared by poll and push.
// It is only called from the Run loop.
func (a *Agent) apply(ctx context.Context, entries []model.RawEntry, source string) {
	res := a.validator.Validate(entries, a.cfg.DeviceID)
	ev := metrics.ScheduleEvent{
		DeviceID: a.cfg.DeviceID,
		Source:   source,
		Entries:  len(entries),
		Accepted: res.OK,
		Time:     a.now(),
	}
	if !res.OK {
		for _, msg := range res.Errors {
			a.log.Errorf("invalid schedule via %s: %s", source, msg)
		}
		_ = a.sink.RecordScheduleUpdate(ev)
		return
	}
	for _, adv := range res.Advisories {
		a.log.Warnf("schedule advisory: %s", adv)
	}

	sched := model.Schedule{
		Version:    uuid.NewString(),
		DeviceID:   a.cfg.DeviceID,
		Entries:    res.Entries,
		Status:     model.StatusActive,
		Source:     source,
		ReceivedAt: a.now(),
	}
	if err := a.store.PutActive(ctx, sched); err != nil {
		// In-memory state stays authoritative; a restart may lose this update.
		a.log.Errorf("persist schedule: %v", err)
	}

	a.mu.Lock()
	a.active = &sched
	a.dispatched = make(map[int]bool, len(sched.Entries))
	a.mu.Unlock()

	_ = a.sink.RecordScheduleUpdate(ev)
	a.log.Infow("schedule applied", map[string]any{
		"source":  source,
		"entries": len(sched.Entries),
		"version": sched.Version,
	})
}

func (a *Agent) executeLoop(ctx context.Context) {
	ticker := time.NewTicker(a.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick scans the active schedule for an entry whose window contains now and
// which has not been dispatched under the current schedule version. The
// dispatched flag is set before the command runs, so an entry fires at most
// once per activation regardless of the tick cadence.
func (a *Agent) tick(ctx context.Context) {
	now := a.now()

	a.mu.Lock()
	if a.active == nil {
		a.mu.Unlock()
		return
	}
	idx := -1
	for i, e := range a.active.Entries {
		if e.Contains(now) && !a.dispatched[i] {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return
	}
	a.dispatched[idx] = true
	entry := a.active.Entries[idx]
	a.mu.Unlock()

	a.execute(ctx, idx, entry)
}

// execute runs one command and reports the result. The command and the
// acknowledgement are not interrupted by shutdown; they complete or time out
// on their own.
func (a *Agent) execute(ctx context.Context, idx int, entry model.Entry) {
	a.log.Infof("executing entry %d: %s at %.2f kW", idx, entry.Mode, entry.RateKW)
	cmdCtx := context.WithoutCancel(ctx)

	actual, err := a.exec.Execute(cmdCtx, entry.Mode, entry.RateKW)
	rec := model.ExecutionRecord{
		EntryIndex: idx,
		ExecutedAt: a.now(),
		Status:     model.ExecutionSuccess,
	}
	if err != nil {
		rec.Status = model.ExecutionFailed
		rec.Error = err.Error()
		a.log.Errorf("entry %d failed: %v", idx, err)
	} else {
		rec.ActualRateKW = &actual
	}

	if serr := a.store.RecordExecution(cmdCtx, a.cfg.DeviceID, rec); serr != nil {
		a.log.Errorf("persist execution record: %v", serr)
	}
	_ = a.sink.RecordExecution(metrics.ExecutionEvent{
		DeviceID:    a.cfg.DeviceID,
		EntryIndex:  idx,
		Mode:        entry.Mode,
		RequestedKW: entry.RateKW,
		ActualKW:    actual,
		Success:     err == nil,
		Time:        rec.ExecutedAt,
	})

	ack := model.Acknowledgement{
		DeviceID:     a.cfg.DeviceID,
		EntryIndex:   idx,
		ExecutedAt:   rec.ExecutedAt,
		Status:       rec.Status,
		ActualRateKW: rec.ActualRateKW,
		Error:        rec.Error,
	}
	if serr := a.acks.SendAck(cmdCtx, ack); serr != nil {
		// The record stays in local history for later inspection.
		a.log.Errorf("send acknowledgement for entry %d: %v", idx, serr)
	}
}

func (a *Agent) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(a.healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.reportHealth(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Agent) reportHealth(ctx context.Context) {
	recs, err := a.store.History(ctx, a.cfg.DeviceID, a.cfg.HistoryLimit)
	if err != nil {
		a.log.Errorf("health report: read history: %v", err)
		recs = nil
	}
	summary := summarize(recs)

	entries := 0
	active := false
	if sched := a.Active(); sched != nil {
		active = true
		entries = len(sched.Entries)
	}
	a.log.Infow("health report", map[string]any{
		"device_id":        a.cfg.DeviceID,
		"schedule_active":  active,
		"entries":          entries,
		"executions":       summary.Executions,
		"success_ratio":    summary.SuccessRatio,
		"mean_actual_kw":   summary.MeanActualKW,
		"stddev_actual_kw": summary.StdDevActualKW,
	})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)        {}
func (nopLogger) Infof(string, ...any)         {}
func (nopLogger) Infow(string, map[string]any) {}
func (nopLogger) Warnf(string, ...any)         {}
func (nopLogger) Errorf(string, ...any)        {}
