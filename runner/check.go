package runner

import (
	"context"
	"errors"
	"time"

	"github.com/nexus-skeleton/libcheck/catalog"
)

// CheckFunc exercises a library and returns a success message, or an error
// describing why the library did not behave. Return Skip to mark the check skipped.
type CheckFunc func(ctx context.Context) (string, error)

// Check is a single registered library check
type Check struct {
	ID       string
	Name     string
	Category string
	Timeout  time.Duration // Overrides the runner default when non-zero
	Run      CheckFunc     // nil checks are registered and skipped
}

// ErrSkipped is matched by every error returned from Skip
var ErrSkipped = errors.New("check skipped")

type skipError struct {
	reason string
}

func (e *skipError) Error() string {
	if e.reason == "" {
		return ErrSkipped.Error()
	}
	return "check skipped: " + e.reason
}

func (e *skipError) Is(target error) bool {
	return target == ErrSkipped
}

// Skip returns an error that marks the check as skipped with the given reason
func Skip(reason string) error {
	return &skipError{reason: reason}
}

// SkipReason extracts the reason from a Skip error
func SkipReason(err error) (string, bool) {
	var se *skipError
	if errors.As(err, &se) {
		return se.reason, true
	}
	return "", false
}

// FromCatalog builds checks for every enabled entry. Entries without an
// implementation in impls get a nil Run and are skipped by the runner.
func FromCatalog(entries []catalog.Entry, impls map[string]CheckFunc) []Check {
	checks := make([]Check, 0, len(entries))
	for _, e := range entries {
		if !e.IsEnabled() {
			continue
		}
		checks = append(checks, Check{
			ID:       e.ID,
			Name:     e.Name,
			Category: e.Category,
			Timeout:  e.Timeout,
			Run:      impls[e.ID],
		})
	}
	return checks
}
