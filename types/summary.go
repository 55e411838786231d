package types

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ISOTimeLayout matches the ISO-8601 timestamps used in exported reports
const ISOTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// TestSummary is an aggregate derived from a set of records. It is never stored.
type TestSummary struct {
	Total         int
	Passed        int
	Failed        int
	Pending       int
	Running       int
	Skipped       int
	ExecutionTime time.Duration
	Timestamp     time.Time
}

// Summarize computes a summary over records, stamped with now
func Summarize(records []TestRecord, now time.Time) TestSummary {
	summary := TestSummary{
		Total:     len(records),
		Timestamp: now,
	}
	for _, r := range records {
		switch r.Status {
		case TestStatusPassed:
			summary.Passed++
		case TestStatusFailed:
			summary.Failed++
		case TestStatusPending:
			summary.Pending++
		case TestStatusRunning:
			summary.Running++
		case TestStatusSkipped:
			summary.Skipped++
		}
		summary.ExecutionTime += r.Duration()
	}
	return summary
}

// Completed returns the number of tests that passed or failed
func (s TestSummary) Completed() int {
	return s.Passed + s.Failed
}

// PassRate returns the rounded percentage of completed tests that passed.
// It is 0 when nothing has completed yet.
func (s TestSummary) PassRate() int {
	completed := s.Completed()
	if completed == 0 {
		return 0
	}
	return int(math.Round(float64(s.Passed) / float64(completed) * 100))
}

// HasFailures reports whether any test failed
func (s TestSummary) HasFailures() bool {
	return s.Failed > 0
}

// String returns a one-line description of the summary
func (s TestSummary) String() string {
	return fmt.Sprintf("total=%d passed=%d failed=%d skipped=%d pending=%d running=%d pass_rate=%d%% duration=%s",
		s.Total, s.Passed, s.Failed, s.Skipped, s.Pending, s.Running, s.PassRate(), s.ExecutionTime)
}

type summaryJSON struct {
	Total         int    `json:"total"`
	Passed        int    `json:"passed"`
	Failed        int    `json:"failed"`
	Pending       int    `json:"pending"`
	Running       int    `json:"running"`
	Skipped       int    `json:"skipped"`
	ExecutionTime int64  `json:"executionTime"`
	Timestamp     string `json:"timestamp"`
}

func (s TestSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		Total:         s.Total,
		Passed:        s.Passed,
		Failed:        s.Failed,
		Pending:       s.Pending,
		Running:       s.Running,
		Skipped:       s.Skipped,
		ExecutionTime: s.ExecutionTime.Milliseconds(),
		Timestamp:     FormatISOTime(s.Timestamp),
	})
}

func (s *TestSummary) UnmarshalJSON(data []byte) error {
	var in summaryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	ts, err := ParseISOTime(in.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid summary timestamp: %w", err)
	}
	*s = TestSummary{
		Total:         in.Total,
		Passed:        in.Passed,
		Failed:        in.Failed,
		Pending:       in.Pending,
		Running:       in.Running,
		Skipped:       in.Skipped,
		ExecutionTime: time.Duration(in.ExecutionTime) * time.Millisecond,
		Timestamp:     ts,
	}
	return nil
}

// FormatISOTime renders t in UTC with millisecond precision
func FormatISOTime(t time.Time) string {
	return t.UTC().Format(ISOTimeLayout)
}

// ParseISOTime parses a timestamp written by FormatISOTime (or any RFC 3339 value)
func ParseISOTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
