// Package schedule implements structural and temporal validation of battery
// schedules before they are accepted for distribution or execution.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/core/timeparse"
)

// Default validation bounds.
const (
	DefaultMinRateKW   = 0.0
	DefaultMaxRateKW   = 1000.0
	DefaultMinDuration = time.Minute
	DefaultMaxDuration = 24 * time.Hour
)

// Validator checks schedule entries against the system constraints. The zero
// value is not usable; construct one with NewValidator.
type Validator struct {
	MinRateKW   float64
	MaxRateKW   float64
	MinDuration time.Duration
	MaxDuration time.Duration
}

// NewValidator returns a Validator with the default constraints.
func NewValidator() *Validator {
	return &Validator{
		MinRateKW:   DefaultMinRateKW,
		MaxRateKW:   DefaultMaxRateKW,
		MinDuration: DefaultMinDuration,
		MaxDuration: DefaultMaxDuration,
	}
}

// Result aggregates the outcome of validating a whole schedule. Errors are
// fatal; Advisories report gaps or overlaps between consecutive windows and
// never block acceptance. Entries holds the parsed schedule in input order
// and is only populated when OK is true.
type Result struct {
	OK         bool
	Errors     []string
	Advisories []string
	Entries    []model.Entry
}

// ValidateEntry checks a single raw entry. Checks run in a fixed order and
// stop at the first failure: field presence, timestamp parsing, ordering,
// duration bounds, mode, rate.
func (v *Validator) ValidateEntry(raw model.RawEntry) (model.Entry, error) {
	switch {
	case raw.Start == nil:
		return model.Entry{}, fmt.Errorf("missing required field: start_time")
	case raw.End == nil:
		return model.Entry{}, fmt.Errorf("missing required field: end_time")
	case raw.Mode == nil:
		return model.Entry{}, fmt.Errorf("missing required field: mode")
	case raw.RateKW == nil:
		return model.Entry{}, fmt.Errorf("missing required field: rate_kw")
	}

	start, err := timeparse.Parse(*raw.Start)
	if err != nil {
		return model.Entry{}, fmt.Errorf("invalid start_time: %w", err)
	}
	end, err := timeparse.Parse(*raw.End)
	if err != nil {
		return model.Entry{}, fmt.Errorf("invalid end_time: %w", err)
	}

	if !start.Before(end) {
		return model.Entry{}, fmt.Errorf("start_time must be before end_time")
	}
	d := end.Sub(start)
	if d < v.MinDuration {
		return model.Entry{}, fmt.Errorf("interval too short: minimum %s", v.MinDuration)
	}
	if d > v.MaxDuration {
		return model.Entry{}, fmt.Errorf("interval too long: maximum %s", v.MaxDuration)
	}

	mode := model.Mode(*raw.Mode)
	if !mode.Valid() {
		return model.Entry{}, fmt.Errorf("mode must be one of: %d, %d (got %d)",
			model.ModeDischarge, model.ModeCharge, *raw.Mode)
	}

	rate := *raw.RateKW
	if rate < v.MinRateKW {
		return model.Entry{}, fmt.Errorf("rate_kw must be >= %g (got %g)", v.MinRateKW, rate)
	}
	if rate > v.MaxRateKW {
		return model.Entry{}, fmt.Errorf("rate_kw must be <= %g (got %g)", v.MaxRateKW, rate)
	}

	return model.Entry{Start: start, End: end, Mode: mode, RateKW: rate}, nil
}

// Validate checks a whole schedule. Every entry is checked independently so
// all structural errors are reported at once. Whole-schedule checks (overlap
// detection, gap advisories) only run when every entry passed. deviceID is
// optional and used for error reporting only.
func (v *Validator) Validate(entries []model.RawEntry, deviceID string) Result {
	prefix := ""
	if deviceID != "" {
		prefix = fmt.Sprintf("device %s: ", deviceID)
	}

	if len(entries) == 0 {
		return Result{Errors: []string{prefix + "schedule cannot be empty"}}
	}

	res := Result{}
	parsed := make([]model.Entry, 0, len(entries))
	for i, raw := range entries {
		e, err := v.ValidateEntry(raw)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%sentry %d: %v", prefix, i, err))
			continue
		}
		parsed = append(parsed, e)
	}
	if len(res.Errors) > 0 {
		return res
	}

	res.Errors = append(res.Errors, overlapErrors(parsed, prefix)...)
	res.Advisories = append(res.Advisories, sequenceAdvisories(parsed, prefix)...)

	if len(res.Errors) == 0 {
		res.OK = true
		res.Entries = parsed
	}
	return res
}

// Clean drops individually invalid entries, re-validates the remainder as a
// set and returns the salvaged subset with warnings describing everything
// that was dropped or is still wrong at the set level. Re-validating the
// returned subset never uncovers further removable entries.
func (v *Validator) Clean(entries []model.RawEntry, deviceID string) ([]model.RawEntry, []string) {
	var warnings []string
	var kept []model.RawEntry
	for i, raw := range entries {
		if _, err := v.ValidateEntry(raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("entry %d invalid: %v", i, err))
			continue
		}
		kept = append(kept, raw)
	}
	if len(kept) > 0 {
		res := v.Validate(kept, deviceID)
		warnings = append(warnings, res.Errors...)
	}
	return kept, warnings
}

type indexedEntry struct {
	model.Entry
	idx int
}

func sortByStart(entries []model.Entry) []indexedEntry {
	sorted := make([]indexedEntry, len(entries))
	for i, e := range entries {
		sorted[i] = indexedEntry{Entry: e, idx: i}
	}
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Start.Before(sorted[b].Start)
	})
	return sorted
}

// overlapErrors walks adjacent pairs in start order. With each entry already
// known to satisfy start < end, an overlap between any pair implies an
// overlap between some adjacent pair, so the single sweep is complete.
func overlapErrors(entries []model.Entry, prefix string) []string {
	var errs []string
	sorted := sortByStart(entries)
	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if cur.End.After(next.Start) {
			errs = append(errs, fmt.Sprintf("%sentries %d and %d overlap: %s > %s",
				prefix, cur.idx, next.idx,
				cur.End.Format(time.RFC3339), next.Start.Format(time.RFC3339)))
		}
	}
	return errs
}

// sequenceAdvisories reports windows that do not line up back to back. These
// are informational only; gaps may well be intentional.
func sequenceAdvisories(entries []model.Entry, prefix string) []string {
	var advisories []string
	sorted := sortByStart(entries)
	for i := 0; i < len(sorted)-1; i++ {
		cur, next := sorted[i], sorted[i+1]
		if cur.End.Equal(next.Start) {
			continue
		}
		delta := next.Start.Sub(cur.End)
		if delta > 0 {
			advisories = append(advisories, fmt.Sprintf("%sgap between entries %d and %d: %s",
				prefix, cur.idx, next.idx, delta))
		} else {
			advisories = append(advisories, fmt.Sprintf("%soverlap between entries %d and %d: %s",
				prefix, cur.idx, next.idx, -delta))
		}
	}
	return advisories
}
