package model

import "time"

// Mode identifies the direction of a battery command.
type Mode int

const (
	ModeDischarge Mode = 1
	ModeCharge    Mode = 2
)

// String returns a human readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeDischarge:
		return "discharge"
	case ModeCharge:
		return "charge"
	default:
		return "unknown"
	}
}

// Valid reports whether the mode is one of the accepted values.
func (m Mode) Valid() bool {
	return m == ModeDischarge || m == ModeCharge
}

// RawEntry is the untrusted wire shape of a schedule entry as received from
// the authority or the broker. Fields are pointers so that a missing key can
// be told apart from a zero value. A RawEntry never crosses the validation
// boundary; validated data lives in Entry.
type RawEntry struct {
	Start  *string  `json:"start_time"`
	End    *string  `json:"end_time"`
	Mode   *int     `json:"mode"`
	RateKW *float64 `json:"rate_kw"`
}

// Entry is a validated schedule entry. Instants are normalized to UTC.
type Entry struct {
	Start  time.Time `json:"start_time"`
	End    time.Time `json:"end_time"`
	Mode   Mode      `json:"mode"`
	RateKW float64   `json:"rate_kw"`
}

// Contains reports whether t falls within the entry window [Start, End).
func (e Entry) Contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// Duration returns the length of the entry window.
func (e Entry) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// ScheduleStatus is the lifecycle state of a schedule.
type ScheduleStatus string

const (
	StatusActive   ScheduleStatus = "active"
	StatusInactive ScheduleStatus = "inactive"
)

// Schedule is an ordered sequence of validated entries owned by one device.
// Schedules are never mutated in place; a newer schedule for the same device
// supersedes the older one atomically.
type Schedule struct {
	Version    string         `json:"version"`
	DeviceID   string         `json:"device_id"`
	Entries    []Entry        `json:"entries"`
	Status     ScheduleStatus `json:"status"`
	Source     string         `json:"source"`
	Priority   int            `json:"priority"`
	ReceivedAt time.Time      `json:"received_at"`
}

// ExecutionStatus is the outcome of one dispatched command.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// ExecutionRecord captures one dispatched command. Records are immutable
// after creation and form an append-only history per device.
type ExecutionRecord struct {
	EntryIndex   int             `json:"entry_index"`
	ExecutedAt   time.Time       `json:"executed_at"`
	Status       ExecutionStatus `json:"status"`
	ActualRateKW *float64        `json:"actual_rate_kw,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Acknowledgement is the payload reported back to the authority after a
// command has been dispatched.
type Acknowledgement struct {
	DeviceID     string          `json:"device_id"`
	EntryIndex   int             `json:"schedule_entry_index"`
	ExecutedAt   time.Time       `json:"execution_time"`
	Status       ExecutionStatus `json:"status"`
	ActualRateKW *float64        `json:"actual_rate_kw,omitempty"`
	Error        string          `json:"error_message,omitempty"`
}

// ScheduleMessage is the pub/sub payload carrying a schedule push for one
// device. Messages addressed to a different device must be discarded by the
// receiver.
type ScheduleMessage struct {
	DeviceID string     `json:"device_id"`
	Schedule []RawEntry `json:"schedule"`
	Source   string     `json:"-"`
}
