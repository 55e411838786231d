package registry

import (
	"encoding/json"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nexus-skeleton/libcheck/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock returns a fixed time that tests advance explicitly
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMetricer struct {
	transitions []types.TestStatus
}

func (m *recordingMetricer) RecordTransition(_ string, status types.TestStatus) {
	m.transitions = append(m.transitions, status)
}

func newTestRegistry(t *testing.T, clock *fakeClock) *Registry {
	t.Helper()
	return NewRegistry(Config{
		Log:   log.NewLogger(log.DiscardHandler()),
		Clock: clock.Now,
	})
}

// spy counts notifications and keeps the latest snapshot
type spy struct {
	calls int
	last  []types.TestRecord
}

func (s *spy) listen(results []types.TestRecord) {
	s.calls++
	s.last = results
}

func TestRegistry_RegisterTest(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	var s spy
	unsubscribe := reg.Subscribe(s.listen)
	defer unsubscribe()

	reg.RegisterTest("mmkv", "MMKV", "Storage")

	res, ok := reg.Result("mmkv")
	require.True(t, ok)
	assert.Equal(t, *types.NewPendingRecord("mmkv", "MMKV", "Storage"), res)
	assert.Equal(t, 1, s.calls)
	require.Len(t, s.last, 1)
}

func TestRegistry_RegisterTestOverwrites(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)
	reg.RegisterTest("a", "Zustand", "State")
	reg.RegisterTest("b", "MMKV", "Storage")
	reg.StartTest("a")
	reg.PassTest("a", "ok")

	reg.RegisterTest("a", "Zustand v5", "State Management")

	res, ok := reg.Result("a")
	require.True(t, ok)
	assert.Equal(t, *types.NewPendingRecord("a", "Zustand v5", "State Management"), res)

	results := reg.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID, "re-registration keeps the original position")
	assert.Equal(t, "b", results[1].ID)
}

func TestRegistry_UnknownIDIsNoop(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("a", "Zustand", "State")
	var s spy
	defer reg.Subscribe(s.listen)()

	before := reg.Results()
	reg.StartTest("missing")
	reg.PassTest("missing", "m")
	reg.FailTest("missing", "e")
	reg.SkipTest("missing", "r")

	assert.Equal(t, 0, s.calls)
	assert.Empty(t, cmp.Diff(before, reg.Results()))
	_, ok := reg.Result("missing")
	assert.False(t, ok)
}

func TestRegistry_PassTiming(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)
	reg.RegisterTest("a", "Zustand", "State")

	t0 := clock.Now()
	reg.StartTest("a")
	clock.Advance(250 * time.Millisecond)
	reg.PassTest("a", "m")

	res, _ := reg.Result("a")
	assert.Equal(t, types.TestStatusPassed, res.Status)
	assert.Equal(t, "m", res.Message)
	assert.Empty(t, res.Error)
	require.NotNil(t, res.StartTime)
	require.NotNil(t, res.EndTime)
	assert.Equal(t, t0, *res.StartTime)
	assert.Equal(t, t0.Add(250*time.Millisecond), *res.EndTime)
	require.NotNil(t, res.ExecutionTime)
	assert.Equal(t, 250*time.Millisecond, *res.ExecutionTime)
}

func TestRegistry_PassWithoutStart(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("a", "Zustand", "State")

	reg.PassTest("a", "")

	res, _ := reg.Result("a")
	assert.Equal(t, types.TestStatusPassed, res.Status)
	assert.Nil(t, res.StartTime)
	require.NotNil(t, res.EndTime)
	require.NotNil(t, res.ExecutionTime)
	assert.Equal(t, time.Duration(0), *res.ExecutionTime)
}

func TestRegistry_FailTest(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)
	reg.RegisterTest("b", "MMKV", "Storage")
	reg.StartTest("b")
	clock.Advance(40 * time.Millisecond)

	reg.FailTest("b", "boom: \x1b[31mred\x1b[0m")

	res, _ := reg.Result("b")
	assert.Equal(t, types.TestStatusFailed, res.Status)
	assert.Equal(t, "boom: \x1b[31mred\x1b[0m", res.Error, "error text is stored verbatim")
	assert.Empty(t, res.Message)
	assert.Equal(t, 40*time.Millisecond, res.Duration())
}

func TestRegistry_SkipNeverTimes(t *testing.T) {
	t.Run("from pending", func(t *testing.T) {
		reg := newTestRegistry(t, newFakeClock())
		reg.RegisterTest("a", "Camera", "Device Features")
		reg.SkipTest("a", "no camera")

		res, _ := reg.Result("a")
		assert.Equal(t, types.TestStatusSkipped, res.Status)
		assert.Equal(t, "no camera", res.Message)
		assert.Nil(t, res.EndTime)
		assert.Nil(t, res.ExecutionTime)
	})

	t.Run("from running", func(t *testing.T) {
		clock := newFakeClock()
		reg := newTestRegistry(t, clock)
		reg.RegisterTest("a", "Camera", "Device Features")
		reg.StartTest("a")
		clock.Advance(time.Second)
		reg.SkipTest("a", "")

		res, _ := reg.Result("a")
		assert.Equal(t, types.TestStatusSkipped, res.Status)
		assert.NotNil(t, res.StartTime)
		assert.Nil(t, res.EndTime)
		assert.Nil(t, res.ExecutionTime)
	})
}

func TestRegistry_PermissiveTransitions(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("a", "Zustand", "State")
	reg.StartTest("a")
	reg.FailTest("a", "boom")

	reg.PassTest("a", "recovered")

	res, _ := reg.Result("a")
	assert.Equal(t, types.TestStatusPassed, res.Status, "last mutation wins")
	assert.Equal(t, "recovered", res.Message)
	assert.Equal(t, "boom", res.Error, "previous error is not cleared")
}

func TestRegistry_StrictTransitions(t *testing.T) {
	reg := NewRegistry(Config{Clock: newFakeClock().Now, StrictTransitions: true})
	reg.RegisterTest("a", "Zustand", "State")
	reg.StartTest("a")
	reg.FailTest("a", "boom")

	var s spy
	defer reg.Subscribe(s.listen)()
	reg.PassTest("a", "recovered")
	reg.SkipTest("a", "late")
	reg.StartTest("a")

	res, _ := reg.Result("a")
	assert.Equal(t, types.TestStatusFailed, res.Status)
	assert.Empty(t, res.Message)
	assert.Equal(t, 0, s.calls)

	// Reset still returns the record to pending
	reg.Reset()
	reg.StartTest("a")
	res, _ = reg.Result("a")
	assert.Equal(t, types.TestStatusRunning, res.Status)
}

func TestRegistry_Scenario(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("a", "Zustand", "State")
	reg.RegisterTest("b", "MMKV", "Storage")

	reg.StartTest("a")
	reg.PassTest("a", "ok")
	reg.StartTest("b")
	reg.FailTest("b", "boom")

	summary := reg.Summary()
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 50, reg.PassRate())
}

func TestRegistry_PassRateWithoutCompletions(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	assert.Equal(t, 0, reg.PassRate())

	reg.RegisterTest("a", "A", "X")
	reg.RegisterTest("b", "B", "X")
	reg.RegisterTest("c", "C", "X")
	reg.StartTest("b")
	reg.SkipTest("c", "")

	assert.Equal(t, 0, reg.PassRate())
}

func TestRegistry_ResultsByCategory(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("mmkv", "MMKV", "Storage")
	reg.RegisterTest("sqlite", "SQLite", "Storage")
	reg.RegisterTest("uuid", "UUID", "Utilities")

	storage := reg.ResultsByCategory("Storage")
	require.Len(t, storage, 2)
	assert.Equal(t, "mmkv", storage[0].ID)
	assert.Equal(t, "sqlite", storage[1].ID)

	assert.Empty(t, reg.ResultsByCategory("storage"), "match is exact")
	assert.Equal(t, []string{"Storage", "Utilities"}, reg.Categories())
}

func TestRegistry_Reset(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)
	reg.RegisterTest("a", "Zustand", "State")
	reg.RegisterTest("b", "MMKV", "Storage")
	reg.StartTest("a")
	reg.PassTest("a", "ok")
	reg.SkipTest("b", "later")

	var s spy
	defer reg.Subscribe(s.listen)()
	reg.Reset()

	assert.Equal(t, 1, s.calls)
	expected := []types.TestRecord{
		*types.NewPendingRecord("a", "Zustand", "State"),
		*types.NewPendingRecord("b", "MMKV", "Storage"),
	}
	if diff := cmp.Diff(expected, reg.Results()); diff != "" {
		t.Errorf("unexpected results after reset (-want +got):\n%s", diff)
	}
}

func TestRegistry_Clear(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("a", "Zustand", "State")
	reg.RegisterTest("b", "MMKV", "Storage")

	var s spy
	defer reg.Subscribe(s.listen)()
	reg.Clear()

	assert.Equal(t, 1, s.calls)
	assert.Empty(t, s.last)
	assert.Empty(t, reg.Results())
	assert.Equal(t, 0, reg.Summary().Total)

	// The registry is usable after clearing
	reg.RegisterTest("a", "Zustand", "State")
	assert.Len(t, reg.Results(), 1)
}

func TestRegistry_Subscribe(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	var first, second spy
	unsubFirst := reg.Subscribe(first.listen)
	unsubSecond := reg.Subscribe(second.listen)
	defer unsubSecond()

	reg.RegisterTest("a", "Zustand", "State")
	reg.StartTest("a")
	assert.Equal(t, 2, first.calls)
	assert.Equal(t, 2, second.calls)

	unsubFirst()
	unsubFirst()
	reg.PassTest("a", "ok")

	assert.Equal(t, 2, first.calls, "unsubscribed listener receives nothing")
	assert.Equal(t, 3, second.calls, "other listeners are unaffected")
	require.Len(t, second.last, 1)
	assert.Equal(t, types.TestStatusPassed, second.last[0].Status)
}

func TestRegistry_SameListenerSubscribedTwice(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	var s spy
	unsubA := reg.Subscribe(s.listen)
	unsubB := reg.Subscribe(s.listen)
	defer unsubB()

	reg.RegisterTest("a", "Zustand", "State")
	assert.Equal(t, 2, s.calls)

	unsubA()
	reg.StartTest("a")
	assert.Equal(t, 3, s.calls)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	reg.RegisterTest("a", "Zustand", "State")
	reg.StartTest("a")

	results := reg.Results()
	results[0].Status = types.TestStatusFailed
	*results[0].StartTime = time.Time{}

	res, _ := reg.Result("a")
	assert.Equal(t, types.TestStatusRunning, res.Status)
	assert.False(t, res.StartTime.IsZero())
}

func TestRegistry_ListenerMayReadDuringBroadcast(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	var passed []int
	defer reg.Subscribe(func([]types.TestRecord) {
		passed = append(passed, reg.Summary().Passed)
	})()

	reg.RegisterTest("a", "Zustand", "State")
	reg.PassTest("a", "ok")

	assert.Equal(t, []int{0, 1}, passed)
}

func TestRegistry_Metrics(t *testing.T) {
	m := &recordingMetricer{}
	reg := NewRegistry(Config{Metrics: m})
	reg.RegisterTest("a", "Zustand", "State")
	reg.StartTest("a")
	reg.PassTest("a", "ok")
	reg.StartTest("missing")

	assert.Equal(t, []types.TestStatus{
		types.TestStatusPending,
		types.TestStatusRunning,
		types.TestStatusPassed,
	}, m.transitions)
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	reg := NewRegistry(Config{})
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		reg.RegisterTest(id, id, "Concurrency")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			reg.StartTest(id)
			reg.PassTest(id, "ok")
		}(id)
	}
	wg.Wait()

	assert.Equal(t, len(ids), reg.Summary().Passed)
}

func TestRegistry_ConcurrentBroadcastsStayOrdered(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for trial := 0; trial < 200; trial++ {
		reg := NewRegistry(Config{})
		for _, id := range ids {
			reg.RegisterTest(id, id, "Concurrency")
		}

		var (
			mu       sync.Mutex
			last     []types.TestRecord
			inFlight atomic.Int32
			overlap  atomic.Bool
		)
		unsubscribe := reg.Subscribe(func(results []types.TestRecord) {
			if inFlight.Add(1) > 1 {
				overlap.Store(true)
			}
			defer inFlight.Add(-1)
			// widen the window between snapshot and delivery
			_, _ = json.Marshal(results)
			runtime.Gosched()
			mu.Lock()
			last = results
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				reg.StartTest(id)
				reg.PassTest(id, "ok")
			}(id)
		}
		wg.Wait()
		unsubscribe()

		require.False(t, overlap.Load(), "trial %d: listener invoked concurrently", trial)
		mu.Lock()
		got := last
		mu.Unlock()
		require.Empty(t, cmp.Diff(reg.Results(), got), "trial %d: last broadcast is stale", trial)
		for _, rec := range got {
			require.Equal(t, types.TestStatusPassed, rec.Status, "trial %d: %s", trial, rec.ID)
		}
	}
}

func TestRegistry_MutationReturnsAfterOwnBroadcast(t *testing.T) {
	reg := NewRegistry(Config{})
	reg.RegisterTest("a", "Zustand", "State")
	reg.RegisterTest("b", "MMKV", "Storage")

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu   sync.Mutex
		seen []types.TestStatus
	)
	defer reg.Subscribe(func(results []types.TestRecord) {
		mu.Lock()
		seen = append(seen, results[1].Status)
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			close(entered)
			<-release
		}
	})()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		reg.StartTest("a")
	}()
	<-entered

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		reg.StartTest("b")
	}()

	select {
	case <-secondDone:
		t.Fatal("StartTest returned before its broadcast was delivered")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-firstDone
	<-secondDone

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.TestStatus{types.TestStatusPending, types.TestStatusRunning}, seen)
}

func TestRegistry_ExportToJSON(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)
	reg.RegisterTest("a", "Zustand", "State")
	reg.RegisterTest("b", "MMKV", "Storage")
	reg.StartTest("a")
	clock.Advance(10 * time.Millisecond)
	reg.PassTest("a", "ok")

	data, err := reg.ExportToJSON(types.AppInfo{AppVersion: "v1.0.0", Platform: "linux/amd64"}, "run-1")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "summary")
	require.Contains(t, doc, "results")
	require.Contains(t, doc, "metadata")

	report, err := types.ParseReport(data)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Passed)
	assert.Equal(t, 1, report.Summary.Pending)
	assert.Equal(t, 10*time.Millisecond, report.Summary.ExecutionTime)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "ok", report.Results[0].Message)
	assert.Equal(t, "v1.0.0", report.Metadata.AppVersion)
	assert.Equal(t, "linux/amd64", report.Metadata.Platform)
	assert.Equal(t, "run-1", report.Metadata.RunID)
	assert.True(t, clock.Now().Equal(report.Metadata.ExportedAt))
}

func TestRegistry_ExportEmpty(t *testing.T) {
	reg := NewRegistry(Config{})

	data, err := reg.ExportToJSON(types.AppInfo{}, "")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"results": []`)
}
