package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nexus-skeleton/libcheck/types"
)

// Listener receives a snapshot of every record after each mutation
type Listener func(results []types.TestRecord)

// Metricer records lifecycle transitions
type Metricer interface {
	RecordTransition(category string, status types.TestStatus)
}

type noopMetricer struct{}

func (noopMetricer) RecordTransition(string, types.TestStatus) {}

// Config contains registry configuration
type Config struct {
	Log     log.Logger
	Clock   func() time.Time
	Metrics Metricer

	// StrictTransitions ignores any mutation of a record that already reached
	// a terminal state. The default is permissive: the last mutation wins.
	StrictTransitions bool
}

// Registry tracks named tests, their lifecycle and timing, and notifies
// subscribers on every change.
//
// Listeners are invoked after the registry lock is released, one broadcast
// at a time and in mutation order, so the last snapshot a listener sees
// always matches Results. A mutating call returns once its own broadcast has
// been delivered. Listeners may read the registry but must not mutate it.
type Registry struct {
	config Config

	mu        sync.Mutex
	order     []string
	records   map[string]*types.TestRecord
	listeners map[uint64]Listener
	nextID    uint64
	pending   []broadcast // guarded by mu

	// notifyMu serializes delivery. It is never acquired while mu is held.
	notifyMu sync.Mutex
}

type broadcast struct {
	snapshot  []types.TestRecord
	listeners []Listener
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) *Registry {
	if cfg.Log == nil {
		cfg.Log = log.NewLogger(log.DiscardHandler())
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetricer{}
	}
	return &Registry{
		config:    cfg,
		records:   make(map[string]*types.TestRecord),
		listeners: make(map[uint64]Listener),
	}
}

// RegisterTest inserts a pending record, replacing any record with the same id
func (r *Registry) RegisterTest(id, name, category string) {
	r.mu.Lock()
	if _, exists := r.records[id]; !exists {
		r.order = append(r.order, id)
	}
	r.records[id] = types.NewPendingRecord(id, name, category)
	r.config.Log.Debug("Registered test", "id", id, "name", name, "category", category)
	r.config.Metrics.RecordTransition(category, types.TestStatusPending)
	r.notifyLocked()
}

// StartTest moves a test to running and stamps its start time
func (r *Registry) StartTest(id string) {
	r.transition(id, types.TestStatusRunning, func(rec *types.TestRecord, now time.Time) {
		rec.StartTime = &now
	})
}

// PassTest marks a test as passed with an optional message
func (r *Registry) PassTest(id string, message string) {
	r.transition(id, types.TestStatusPassed, func(rec *types.TestRecord, now time.Time) {
		rec.Message = message
		finish(rec, now)
	})
}

// FailTest marks a test as failed. errMsg is stored verbatim.
func (r *Registry) FailTest(id string, errMsg string) {
	r.transition(id, types.TestStatusFailed, func(rec *types.TestRecord, now time.Time) {
		rec.Error = errMsg
		finish(rec, now)
	})
}

// SkipTest marks a test as skipped. Skips are not timed, so end and
// execution time are left untouched.
func (r *Registry) SkipTest(id string, reason string) {
	r.transition(id, types.TestStatusSkipped, func(rec *types.TestRecord, _ time.Time) {
		rec.Message = reason
	})
}

func finish(rec *types.TestRecord, now time.Time) {
	rec.EndTime = &now
	var exec time.Duration
	if rec.StartTime != nil {
		exec = now.Sub(*rec.StartTime)
	}
	rec.ExecutionTime = &exec
}

// transition applies mutate to the record with the given id and broadcasts.
// Unknown ids are ignored without notifying anyone.
func (r *Registry) transition(id string, to types.TestStatus, mutate func(*types.TestRecord, time.Time)) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		r.config.Log.Trace("Ignoring transition for unknown test", "id", id, "status", to)
		return
	}
	if r.config.StrictTransitions && rec.Status.IsTerminal() {
		r.mu.Unlock()
		r.config.Log.Debug("Ignoring transition out of terminal state", "id", id, "from", rec.Status, "to", to)
		return
	}

	from := rec.Status
	rec.Status = to
	mutate(rec, r.config.Clock())
	r.config.Log.Debug("Test transitioned", "id", id, "from", from, "to", to)
	r.config.Metrics.RecordTransition(rec.Category, to)
	r.notifyLocked()
}

// Results returns a snapshot of every record in registration order
func (r *Registry) Results() []types.TestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Result returns a copy of the record with the given id
func (r *Registry) Result(id string) (types.TestRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return types.TestRecord{}, false
	}
	return rec.Clone(), true
}

// Summary computes aggregate counts over every record
func (r *Registry) Summary() types.TestSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.Summarize(r.snapshotLocked(), r.config.Clock())
}

// ResultsByCategory returns the records whose category matches exactly
func (r *Registry) ResultsByCategory(category string) []types.TestRecord {
	results := r.Results()
	filtered := make([]types.TestRecord, 0, len(results))
	for _, rec := range results {
		if rec.Category == category {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// Categories returns the distinct categories in first-registration order
func (r *Registry) Categories() []string {
	results := r.Results()
	seen := make(map[string]bool)
	var categories []string
	for _, rec := range results {
		if !seen[rec.Category] {
			seen[rec.Category] = true
			categories = append(categories, rec.Category)
		}
	}
	return categories
}

// PassRate returns the rounded percentage of passed over completed tests
func (r *Registry) PassRate() int {
	return r.Summary().PassRate()
}

// Reset returns every record to pending, keeping id, name and category
func (r *Registry) Reset() {
	r.mu.Lock()
	for _, id := range r.order {
		r.records[id].ResetToPending()
	}
	r.config.Log.Debug("Reset all tests", "count", len(r.order))
	r.notifyLocked()
}

// Clear removes every record
func (r *Registry) Clear() {
	r.mu.Lock()
	r.order = nil
	r.records = make(map[string]*types.TestRecord)
	r.config.Log.Debug("Cleared all tests")
	r.notifyLocked()
}

// Subscribe registers a listener and returns a function that removes exactly
// that listener. Calling the returned function more than once is harmless.
func (r *Registry) Subscribe(listener Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = listener
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// Export builds a report of the current state
func (r *Registry) Export(info types.AppInfo, runID string) types.Report {
	r.mu.Lock()
	results := r.snapshotLocked()
	now := r.config.Clock()
	r.mu.Unlock()

	return types.Report{
		Summary: types.Summarize(results, now),
		Results: results,
		Metadata: types.ExportMetadata{
			ExportedAt: now,
			AppVersion: info.AppVersion,
			Platform:   info.Platform,
			RunID:      runID,
		},
	}
}

// ExportToJSON serializes the current state as an indented JSON report
func (r *Registry) ExportToJSON(info types.AppInfo, runID string) ([]byte, error) {
	data, err := json.MarshalIndent(r.Export(info, runID), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

func (r *Registry) snapshotLocked() []types.TestRecord {
	out := make([]types.TestRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// notifyLocked must be called with r.mu held. It queues the broadcast,
// releases the lock and drains the queue in order. Whoever holds notifyMu
// delivers every queued broadcast, including those queued by other callers.
func (r *Registry) notifyLocked() {
	snapshot := r.snapshotLocked()
	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, r.listeners[id])
	}
	if len(listeners) == 0 {
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, broadcast{snapshot: snapshot, listeners: listeners})
	r.mu.Unlock()

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}
		b := r.pending[0]
		r.pending[0] = broadcast{}
		r.pending = r.pending[1:]
		r.mu.Unlock()

		for _, l := range b.listeners {
			l(b.snapshot)
		}
	}
}
