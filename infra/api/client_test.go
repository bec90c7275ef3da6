package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fleetvolt/battsched/core/agent"
	"github.com/fleetvolt/battsched/core/model"
)

func TestFetchSchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedules/RPI-001" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("date") != "2025-12-25" {
			t.Errorf("missing date query, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"device_id":"RPI-001","schedule":[{"start_time":"2025-12-25T00:00:00Z","end_time":"2025-12-25T00:30:00Z","mode":2,"rate_kw":50}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	entries, err := c.FetchSchedule(context.Background(), "RPI-001", "2025-12-25")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(entries) != 1 || *entries[0].Mode != 2 {
		t.Fatalf("bad entries %+v", entries)
	}
}

func TestFetchScheduleNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	if _, err := c.FetchSchedule(context.Background(), "RPI-001", ""); !errors.Is(err, agent.ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule got %v", err)
	}
}

func TestFetchScheduleServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	if _, err := c.FetchSchedule(context.Background(), "RPI-001", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFetchScheduleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := Config{BaseURL: srv.URL, FetchTimeoutSeconds: 1}
	c := New(cfg, nil)
	c.fetchTimeout = 50 * time.Millisecond
	if _, err := c.FetchSchedule(context.Background(), "RPI-001", ""); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestSendAck(t *testing.T) {
	var got model.Acknowledgement
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/devices/RPI-001/acknowledgements" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	actual := 49.0
	ack := model.Acknowledgement{
		DeviceID:     "RPI-001",
		EntryIndex:   3,
		ExecutedAt:   time.Date(2025, 12, 25, 0, 5, 0, 0, time.UTC),
		Status:       model.ExecutionSuccess,
		ActualRateKW: &actual,
	}
	c := New(Config{BaseURL: srv.URL}, nil)
	if err := c.SendAck(context.Background(), ack); err != nil {
		t.Fatalf("send ack: %v", err)
	}
	if got.EntryIndex != 3 || got.Status != model.ExecutionSuccess || got.ActualRateKW == nil {
		t.Fatalf("bad ack payload %+v", got)
	}
}

func TestSendAckRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	err := c.SendAck(context.Background(), model.Acknowledgement{DeviceID: "RPI-001"})
	if err == nil {
		t.Fatalf("expected error for non-202 response")
	}
}
