package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/types"
)

const (
	// NoImplementationReason is recorded for checks registered without a CheckFunc
	NoImplementationReason = "no implementation registered"
	// CancelledReason is recorded for checks that never started because the run was cancelled
	CancelledReason = "run cancelled"
)

// RunResult summarises a single run over every check
type RunResult struct {
	RunID    string
	Summary  types.TestSummary
	PassRate int
	Duration time.Duration
}

// Config holds configuration for creating a new runner
type Config struct {
	Registry       *registry.Registry
	Log            log.Logger
	Concurrency    int           // Number of checks run at once; 0 or 1 runs serially
	DefaultTimeout time.Duration // Applied to checks without their own timeout; 0 disables it
}

// Runner drives checks through the registry lifecycle
type Runner struct {
	registry       *registry.Registry
	log            log.Logger
	concurrency    int
	defaultTimeout time.Duration
	tracer         trace.Tracer
}

// NewRunner creates a new runner instance
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}

	cfg.Log.Debug("NewRunner()", "concurrency", cfg.Concurrency, "defaultTimeout", cfg.DefaultTimeout)

	return &Runner{
		registry:       cfg.Registry,
		log:            cfg.Log,
		concurrency:    cfg.Concurrency,
		defaultTimeout: cfg.DefaultTimeout,
		tracer:         otel.Tracer("check runner"),
	}, nil
}

// RunAll registers every check, runs them and returns the resulting summary.
// Check failures are recorded in the registry, they are not returned as errors.
func (r *Runner) RunAll(ctx context.Context, checks []Check) (*RunResult, error) {
	runID := uuid.New().String()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("checks", len(checks)),
	))
	defer span.End()

	seen := make(map[string]bool, len(checks))
	for _, c := range checks {
		if c.ID == "" {
			return nil, fmt.Errorf("check %q has no id", c.Name)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate check id %q", c.ID)
		}
		seen[c.ID] = true
	}

	r.log.Info("Running checks", "run_id", runID, "count", len(checks), "concurrency", r.concurrency)
	for _, c := range checks {
		r.registry.RegisterTest(c.ID, c.Name, c.Category)
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, c := range checks {
		g.Go(func() error {
			r.runCheck(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	summary := r.registry.Summary()
	result := &RunResult{
		RunID:    runID,
		Summary:  summary,
		PassRate: summary.PassRate(),
		Duration: time.Since(start),
	}
	if summary.HasFailures() {
		span.SetStatus(codes.Error, fmt.Sprintf("%d checks failed", summary.Failed))
	}
	r.log.Info("Checks completed", "run_id", runID, "summary", summary.String(), "duration", result.Duration)
	return result, nil
}

// runCheck moves a single check through start and a terminal transition
func (r *Runner) runCheck(ctx context.Context, c Check) {
	if ctx.Err() != nil {
		r.registry.SkipTest(c.ID, CancelledReason)
		return
	}
	if c.Run == nil {
		r.log.Debug("Skipping check without implementation", "id", c.ID)
		r.registry.SkipTest(c.ID, NoImplementationReason)
		return
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("check %s", c.ID), trace.WithAttributes(
		attribute.String("category", c.Category),
	))
	defer span.End()

	timeout := c.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.registry.StartTest(c.ID)
	r.log.Debug("Running check", "id", c.ID, "timeout", timeout)

	message, err := r.invoke(ctx, c)
	switch {
	case err == nil:
		r.registry.PassTest(c.ID, message)
		r.log.Info("Check passed", "id", c.ID, "message", message)
	case errors.Is(err, ErrSkipped):
		reason, _ := SkipReason(err)
		r.registry.SkipTest(c.ID, reason)
		r.log.Info("Check skipped", "id", c.ID, "reason", reason)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.registry.FailTest(c.ID, err.Error())
		r.log.Warn("Check failed", "id", c.ID, "err", err)
	}
}

type outcome struct {
	message string
	err     error
}

// invoke runs the check in its own goroutine so a check that ignores its
// context still fails once the context expires.
func (r *Runner) invoke(ctx context.Context, c Check) (string, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("Check panicked", "id", c.ID, "panic", p, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		msg, err := c.Run(ctx)
		done <- outcome{message: msg, err: err}
	}()

	select {
	case out := <-done:
		return out.message, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timed out: %w", ctx.Err())
		}
		return "", fmt.Errorf("cancelled: %w", ctx.Err())
	}
}
