package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/fleetvolt/battsched/core/model"
)

func raw(start, end string, mode int, rate float64) model.RawEntry {
	return model.RawEntry{Start: &start, End: &end, Mode: &mode, RateKW: &rate}
}

func TestValidateSingleValidEntry(t *testing.T) {
	v := NewValidator()
	res := v.Validate([]model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 2, 50),
	}, "")
	if !res.OK {
		t.Fatalf("expected ok, errors: %v", res.Errors)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected 1 parsed entry got %d", len(res.Entries))
	}
	e := res.Entries[0]
	if e.Mode != model.ModeCharge || e.RateKW != 50 {
		t.Fatalf("bad parsed entry %+v", e)
	}
	if e.Duration() != 30*time.Minute {
		t.Fatalf("expected 30m duration got %s", e.Duration())
	}
}

func TestValidateBackToBackNoAdvisories(t *testing.T) {
	v := NewValidator()
	res := v.Validate([]model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 2, 50),
		raw("2025-12-25T00:30:00Z", "2025-12-25T01:00:00Z", 1, 100),
	}, "")
	if !res.OK {
		t.Fatalf("expected ok, errors: %v", res.Errors)
	}
	if len(res.Advisories) != 0 {
		t.Fatalf("expected no advisories got %v", res.Advisories)
	}
}

func TestValidateOverlap(t *testing.T) {
	a := raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 1, 100)
	b := raw("2025-12-25T00:15:00Z", "2025-12-25T00:45:00Z", 2, 50)

	v := NewValidator()
	for name, entries := range map[string][]model.RawEntry{
		"in_order": {a, b},
		"reversed": {b, a},
	} {
		res := v.Validate(entries, "")
		if res.OK {
			t.Fatalf("%s: expected failure", name)
		}
		if len(res.Errors) != 1 {
			t.Fatalf("%s: expected exactly one error got %v", name, res.Errors)
		}
		msg := res.Errors[0]
		if !strings.Contains(msg, "entries 0 and 1") && !strings.Contains(msg, "entries 1 and 0") {
			t.Fatalf("%s: overlap error must name both indices, got %q", name, msg)
		}
	}
}

func TestValidateInvalidMode(t *testing.T) {
	v := NewValidator()
	res := v.Validate([]model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 3, 100),
	}, "")
	if res.OK {
		t.Fatalf("expected failure")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("expected one error got %v", res.Errors)
	}
	msg := res.Errors[0]
	if !strings.Contains(msg, "mode") || !strings.Contains(msg, "1, 2") {
		t.Fatalf("mode error must name the valid values, got %q", msg)
	}
}

func TestValidateEmpty(t *testing.T) {
	v := NewValidator()
	if res := v.Validate(nil, ""); res.OK {
		t.Fatalf("expected empty schedule to be invalid")
	}
	res := v.Validate([]model.RawEntry{}, "RPI-001")
	if res.OK {
		t.Fatalf("expected empty schedule to be invalid")
	}
	if !strings.Contains(res.Errors[0], "RPI-001") {
		t.Fatalf("expected device prefix in %q", res.Errors[0])
	}
}

func TestValidateMissingFields(t *testing.T) {
	v := NewValidator()
	start := "2025-12-25T00:00:00Z"
	end := "2025-12-25T00:30:00Z"
	mode := 1
	rate := 10.0
	cases := map[string]model.RawEntry{
		"start_time": {End: &end, Mode: &mode, RateKW: &rate},
		"end_time":   {Start: &start, Mode: &mode, RateKW: &rate},
		"mode":       {Start: &start, End: &end, RateKW: &rate},
		"rate_kw":    {Start: &start, End: &end, Mode: &mode},
	}
	for field, entry := range cases {
		res := v.Validate([]model.RawEntry{entry}, "")
		if res.OK {
			t.Fatalf("expected failure for missing %s", field)
		}
		if !strings.Contains(res.Errors[0], field) {
			t.Fatalf("expected error naming %s, got %q", field, res.Errors[0])
		}
	}
}

func TestValidateBadTimestampIsFatal(t *testing.T) {
	v := NewValidator()
	res := v.Validate([]model.RawEntry{
		raw("yesterday", "2025-12-25T00:30:00Z", 1, 10),
	}, "")
	if res.OK {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(res.Errors[0], "start_time") {
		t.Fatalf("expected start_time error got %q", res.Errors[0])
	}
}

func TestValidateOrderingAndDurationBounds(t *testing.T) {
	v := NewValidator()
	cases := []struct {
		name       string
		start, end string
		want       string
	}{
		{"inverted", "2025-12-25T01:00:00Z", "2025-12-25T00:00:00Z", "before"},
		{"too_short", "2025-12-25T00:00:00Z", "2025-12-25T00:00:30Z", "too short"},
		{"too_long", "2025-12-25T00:00:00Z", "2025-12-26T01:00:00Z", "too long"},
	}
	for _, c := range cases {
		res := v.Validate([]model.RawEntry{raw(c.start, c.end, 1, 10)}, "")
		if res.OK {
			t.Fatalf("%s: expected failure", c.name)
		}
		if !strings.Contains(res.Errors[0], c.want) {
			t.Fatalf("%s: expected %q in %q", c.name, c.want, res.Errors[0])
		}
	}
	// Exactly one minute and exactly 24 hours are both allowed.
	for _, c := range [][2]string{
		{"2025-12-25T00:00:00Z", "2025-12-25T00:01:00Z"},
		{"2025-12-25T00:00:00Z", "2025-12-26T00:00:00Z"},
	} {
		if res := v.Validate([]model.RawEntry{raw(c[0], c[1], 1, 10)}, ""); !res.OK {
			t.Fatalf("boundary duration rejected: %v", res.Errors)
		}
	}
}

func TestValidateRateBounds(t *testing.T) {
	v := NewValidator()
	for _, rate := range []float64{-0.1, 1000.1} {
		res := v.Validate([]model.RawEntry{
			raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 1, rate),
		}, "")
		if res.OK {
			t.Fatalf("expected failure for rate %g", rate)
		}
		if !strings.Contains(res.Errors[0], "rate_kw") {
			t.Fatalf("expected rate_kw error got %q", res.Errors[0])
		}
	}
	for _, rate := range []float64{0, 1000} {
		res := v.Validate([]model.RawEntry{
			raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 1, rate),
		}, "")
		if !res.OK {
			t.Fatalf("boundary rate %g rejected: %v", rate, res.Errors)
		}
	}
}

func TestValidateReportsAllStructuralErrors(t *testing.T) {
	v := NewValidator()
	res := v.Validate([]model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 3, 10),
		raw("2025-12-25T01:00:00Z", "2025-12-25T01:30:00Z", 1, 2000),
		raw("2025-12-25T02:00:00Z", "2025-12-25T02:30:00Z", 1, 10),
	}, "")
	if res.OK {
		t.Fatalf("expected failure")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected both structural errors reported, got %v", res.Errors)
	}
}

func TestValidateGapAdvisoryDoesNotBlock(t *testing.T) {
	v := NewValidator()
	res := v.Validate([]model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 1, 10),
		raw("2025-12-25T01:00:00Z", "2025-12-25T01:30:00Z", 2, 10),
	}, "")
	if !res.OK {
		t.Fatalf("gap must not block acceptance: %v", res.Errors)
	}
	if len(res.Advisories) != 1 || !strings.Contains(res.Advisories[0], "gap") {
		t.Fatalf("expected one gap advisory got %v", res.Advisories)
	}
}

func TestCleanSalvagesValidSubset(t *testing.T) {
	v := NewValidator()
	entries := []model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 1, 10),
		raw("2025-12-25T00:30:00Z", "2025-12-25T01:00:00Z", 3, 10), // bad mode
		raw("2025-12-25T01:00:00Z", "2025-12-25T01:30:00Z", 2, 10),
	}
	kept, warnings := v.Clean(entries, "")
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept entries got %d", len(kept))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "entry 1") {
		t.Fatalf("expected warning for entry 1 got %v", warnings)
	}
	// Fixed point: cleaning again removes nothing further.
	again, warnings2 := v.Clean(kept, "")
	if len(again) != len(kept) || len(warnings2) != 0 {
		t.Fatalf("clean not a fixed point: kept=%d warnings=%v", len(again), warnings2)
	}
	if res := v.Validate(kept, ""); !res.OK {
		t.Fatalf("cleaned subset fails validation: %v", res.Errors)
	}
}

func TestCleanKeepsSetLevelErrorsAsWarnings(t *testing.T) {
	v := NewValidator()
	entries := []model.RawEntry{
		raw("2025-12-25T00:00:00Z", "2025-12-25T00:30:00Z", 1, 10),
		raw("2025-12-25T00:15:00Z", "2025-12-25T00:45:00Z", 1, 10),
	}
	kept, warnings := v.Clean(entries, "")
	if len(kept) != 2 {
		t.Fatalf("overlapping but individually valid entries must be kept, got %d", len(kept))
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "overlap") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected overlap warning got %v", warnings)
	}
}
