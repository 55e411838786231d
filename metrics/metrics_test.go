package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/nexus-skeleton/libcheck/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			validLabelRegex := regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
	RecordErrorDetails("share", errors.New("disk full"))
	RecordErrorDetails("share", nil)
}

func TestMetricer_RecordTransition(t *testing.T) {
	m := NewMetricer()
	counter := transitionsTotal.WithLabelValues("Storage", string(types.TestStatusPassed))
	before := testutil.ToFloat64(counter)

	m.RecordTransition("Storage", types.TestStatusPassed)
	m.RecordTransition("Storage", types.TestStatus("bogus"))

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordSummary(t *testing.T) {
	RecordSummary(types.TestSummary{Total: 4, Passed: 3, Failed: 1})

	assert.Equal(t, float64(3), testutil.ToFloat64(testsByStatus.WithLabelValues("passed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(testsByStatus.WithLabelValues("failed")))
	assert.Equal(t, float64(75), testutil.ToFloat64(passRate))
}

func TestRecordRunAndShare(t *testing.T) {
	RecordRun(true, 1500*time.Millisecond)
	assert.Equal(t, 1.5, testutil.ToFloat64(runDuration))

	before := testutil.ToFloat64(sharesTotal.WithLabelValues("dir", "error"))
	RecordShare("dir", errors.New("unavailable"))
	assert.Equal(t, before+1, testutil.ToFloat64(sharesTotal.WithLabelValues("dir", "error")))
}
