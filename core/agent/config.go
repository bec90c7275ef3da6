package agent

import (
	"fmt"
	"time"
)

// Config defines the agent runtime parameters. It is passed explicitly at
// construction; there is no process-wide configuration state.
type Config struct {
	DeviceID string `json:"device_id"`
	// PollIntervalSeconds is the cadence of schedule fetches from the
	// authority.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
	// TickIntervalSeconds is the cadence of the execution scan. It must stay
	// below the minimum entry duration of one minute so no window is missed.
	TickIntervalSeconds int `json:"tick_interval_seconds"`
	// HealthIntervalSeconds is the cadence of the health report.
	HealthIntervalSeconds int `json:"health_interval_seconds"`
	// HistoryLimit caps how many execution records the health report reads.
	HistoryLimit int `json:"history_limit"`
}

// SetDefaults applies the daemon defaults.
func (c *Config) SetDefaults() {
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 300
	}
	if c.TickIntervalSeconds <= 0 {
		c.TickIntervalSeconds = 30
	}
	if c.HealthIntervalSeconds <= 0 {
		c.HealthIntervalSeconds = 300
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if time.Duration(c.TickIntervalSeconds)*time.Second >= time.Minute {
		return fmt.Errorf("tick_interval_seconds must be below 60")
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// TickInterval returns the execution scan cadence as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// HealthInterval returns the health report cadence as a duration.
func (c Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSeconds) * time.Second
}
