package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TestStatus represents the possible states of a registered test
type TestStatus string

const (
	TestStatusPending TestStatus = "pending"
	TestStatusRunning TestStatus = "running"
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
	TestStatusSkipped TestStatus = "skipped"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TestStatus{
	TestStatusPending,
	TestStatusRunning,
	TestStatusPassed,
	TestStatusFailed,
	TestStatusSkipped,
}

// IsValid reports whether s is one of the known statuses
func (s TestStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s ends a test's lifecycle
func (s TestStatus) IsTerminal() bool {
	return s == TestStatusPassed || s == TestStatusFailed || s == TestStatusSkipped
}

// TestRecord captures the lifecycle of a single registered test.
// A pending record carries no message, error or timing information.
type TestRecord struct {
	ID       string
	Name     string
	Category string
	Status   TestStatus
	Message  string // Set on pass or skip
	Error    string // Set on fail, stored verbatim

	StartTime     *time.Time
	EndTime       *time.Time
	ExecutionTime *time.Duration // EndTime - StartTime, or 0 when the test was never started
}

// NewPendingRecord creates a fresh record in the pending state
func NewPendingRecord(id, name, category string) *TestRecord {
	return &TestRecord{
		ID:       id,
		Name:     name,
		Category: category,
		Status:   TestStatusPending,
	}
}

// Clone returns a deep copy of the record so callers never share timestamps with the registry
func (r TestRecord) Clone() TestRecord {
	out := r
	if r.StartTime != nil {
		t := *r.StartTime
		out.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	if r.ExecutionTime != nil {
		d := *r.ExecutionTime
		out.ExecutionTime = &d
	}
	return out
}

// ResetToPending clears every mutable field while keeping the identity fields
func (r *TestRecord) ResetToPending() {
	r.Status = TestStatusPending
	r.Message = ""
	r.Error = ""
	r.StartTime = nil
	r.EndTime = nil
	r.ExecutionTime = nil
}

// Duration returns the execution time, or zero when none has been recorded
func (r TestRecord) Duration() time.Duration {
	if r.ExecutionTime == nil {
		return 0
	}
	return *r.ExecutionTime
}

// recordJSON is the wire shape of a TestRecord. Timestamps and durations are milliseconds.
type recordJSON struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Status        TestStatus `json:"status"`
	Message       string     `json:"message,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartTime     *int64     `json:"startTime,omitempty"`
	EndTime       *int64     `json:"endTime,omitempty"`
	ExecutionTime *int64     `json:"executionTime,omitempty"`
}

func (r TestRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:       r.ID,
		Name:     r.Name,
		Category: r.Category,
		Status:   r.Status,
		Message:  r.Message,
		Error:    r.Error,
	}
	if r.StartTime != nil {
		ms := r.StartTime.UnixMilli()
		out.StartTime = &ms
	}
	if r.EndTime != nil {
		ms := r.EndTime.UnixMilli()
		out.EndTime = &ms
	}
	if r.ExecutionTime != nil {
		ms := r.ExecutionTime.Milliseconds()
		out.ExecutionTime = &ms
	}
	return json.Marshal(out)
}

func (r *TestRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !in.Status.IsValid() {
		return fmt.Errorf("invalid test status %q for test %q", in.Status, in.ID)
	}
	*r = TestRecord{
		ID:       in.ID,
		Name:     in.Name,
		Category: in.Category,
		Status:   in.Status,
		Message:  in.Message,
		Error:    in.Error,
	}
	if in.StartTime != nil {
		t := time.UnixMilli(*in.StartTime)
		r.StartTime = &t
	}
	if in.EndTime != nil {
		t := time.UnixMilli(*in.EndTime)
		r.EndTime = &t
	}
	if in.ExecutionTime != nil {
		d := time.Duration(*in.ExecutionTime) * time.Millisecond
		r.ExecutionTime = &d
	}
	return nil
}
