// Package api implements the HTTP client consuming the authority's schedule
// and acknowledgement endpoints. Both operations are best-effort: callers
// cache on failure and retry on their next natural cycle.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fleetvolt/battsched/core/agent"
	"github.com/fleetvolt/battsched/core/model"
	"github.com/fleetvolt/battsched/infra/logger"
)

// Config defines the authority endpoint and per-call timeouts.
type Config struct {
	BaseURL             string `json:"base_url"`
	FetchTimeoutSeconds int    `json:"fetch_timeout_seconds"`
	AckTimeoutSeconds   int    `json:"ack_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 30
	}
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}
	return nil
}

// Client talks to the authority REST API.
type Client struct {
	baseURL      string
	http         *http.Client
	fetchTimeout time.Duration
	ackTimeout   time.Duration
	log          logger.Logger
}

// New creates a Client from the configuration.
func New(cfg Config, log logger.Logger) *Client {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		http:         &http.Client{},
		fetchTimeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		ackTimeout:   time.Duration(cfg.AckTimeoutSeconds) * time.Second,
		log:          log,
	}
}

type scheduleResponse struct {
	DeviceID string           `json:"device_id"`
	Schedule []model.RawEntry `json:"schedule"`
}

// FetchSchedule retrieves the schedule for the device. date is optional
// (YYYY-MM-DD). A 404 maps to agent.ErrNoSchedule.
func (c *Client) FetchSchedule(ctx context.Context, deviceID, date string) ([]model.RawEntry, error) {
	url := fmt.Sprintf("%s/schedules/%s", c.baseURL, deviceID)
	if date != "" {
		url += "?date=" + date
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, agent.ErrNoSchedule
	default:
		return nil, fmt.Errorf("fetch schedule: unexpected status %d", resp.StatusCode)
	}

	var sr scheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return sr.Schedule, nil
}

// SendAck reports an execution acknowledgement. The authority answers 202 on
// acceptance; anything else is an error for the caller to log.
func (c *Client) SendAck(ctx context.Context, ack model.Acknowledgement) error {
	payload, err := json.Marshal(ack)
	if err != nil {
		return fmt.Errorf("encode ack: %w", err)
	}
	url := fmt.Sprintf("%s/devices/%s/acknowledgements", c.baseURL, ack.DeviceID)

	ctx, cancel := context.WithTimeout(ctx, c.ackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send ack: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("send ack: unexpected status %d", resp.StatusCode)
	}
	c.log.Debugf("acknowledgement sent for entry %d", ack.EntryIndex)
	return nil
}
