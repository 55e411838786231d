// Package libcheck runs library health checks and reports their results.
package libcheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexus-skeleton/libcheck/catalog"
	"github.com/nexus-skeleton/libcheck/checks"
	"github.com/nexus-skeleton/libcheck/history"
	"github.com/nexus-skeleton/libcheck/metrics"
	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/runner"
	"github.com/nexus-skeleton/libcheck/service"
	"github.com/nexus-skeleton/libcheck/share"
	"github.com/nexus-skeleton/libcheck/types"
)

type libcheck struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    *runner.Runner
	checks    []runner.Check
	exporter  *share.Exporter
	target    share.Target
	history   *history.Store
	service   *service.Service
	formatter ResultFormatter
	reporter  *DefaultMetricsReporter
	result    *runner.RunResult
	lastRunID atomic.Value

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New wires every component described by config. Nothing runs until Start.
func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*libcheck, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating libcheck with config", config.logFields()...)

	reg := registry.NewRegistry(registry.Config{
		Log:               config.Log,
		Metrics:           metrics.NewMetricer(),
		StrictTransitions: config.StrictTransitions,
	})

	cat, err := LoadCatalog(config.CatalogPattern)
	if err != nil {
		return nil, err
	}

	target, err := newTarget(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create share target: %w", err)
	}

	enabled := cat.Enabled()
	impls := checks.Builtin(checks.Deps{
		Log:      config.Log,
		ProbeURL: config.ProbeURL,
		Target:   target,
		Catalog:  enabled,
	})
	checkList := runner.FromCatalog(enabled, impls)

	checkRunner, err := runner.NewRunner(runner.Config{
		Registry:       reg,
		Log:            config.Log,
		Concurrency:    config.Concurrency,
		DefaultTimeout: config.CheckTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create check runner: %w", err)
	}

	info := types.AppInfo{AppVersion: config.AppVersion, Platform: config.Platform}
	exporter, err := share.NewExporter(share.Config{
		Registry: reg,
		Dir:      config.ExportDir,
		Target:   target,
		Info:     info,
		Log:      config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	var store *history.Store
	if config.HistoryDB != "" {
		store, err = history.Open(ctx, config.HistoryDB)
		if err != nil {
			return nil, err
		}
	}

	l := &libcheck{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		runner:           checkRunner,
		checks:           checkList,
		exporter:         exporter,
		target:           target,
		history:          store,
		formatter:        NewConsoleResultFormatter(config.Log, os.Stdout),
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}
	l.lastRunID.Store("")
	l.service = service.New(config.Service, reg, info, l.LastRunID)

	config.Log.Info("libcheck.New: created registry and check runner", "checks", len(checkList), "target", target.Name())
	return l, nil
}

// LoadCatalog returns the built-in catalog with the files matching pattern merged over it
func LoadCatalog(pattern string) (*catalog.Catalog, error) {
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in catalog: %w", err)
	}
	if pattern != "" {
		extra, err := catalog.LoadGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", pattern, err)
		}
		cat.Merge(extra)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}

func newTarget(ctx context.Context, config *Config) (share.Target, error) {
	switch {
	case config.ShareS3Bucket != "":
		return share.NewS3Target(ctx, config.ShareS3Bucket, config.ShareS3Prefix)
	case config.ShareDir != "":
		return &share.DirTarget{Dir: config.ShareDir}, nil
	default:
		return share.NopTarget{}, nil
	}
}

// Start runs the checks once, then periodically at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (l *libcheck) Start(ctx context.Context) error {
	l.ctx = ctx
	l.done = make(chan struct{})
	l.running.Store(true)
	l.reporter = NewDefaultMetricsReporter(l.registry)
	l.service.Start(ctx)

	if l.config.RunOnce {
		l.config.Log.Info("Starting libcheck in run-once mode")
	} else {
		l.config.Log.Info("Starting libcheck in continuous mode", "interval", l.config.RunInterval)
	}

	if err := l.runChecks(ctx); err != nil {
		return err
	}

	if l.config.RunOnce {
		l.config.Log.Info("Checks completed, exiting (run-once mode)")
		if l.result != nil && l.result.Summary.HasFailures() {
			l.config.Log.Warn("Run-once check run completed with failures, returning exit code 1")
			return NewCheckFailureError(l.result.Summary.String())
		}
		go func() {
			l.shutdownCallback(nil)
		}()
		return nil
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.config.Log.Debug("Starting periodic check runner goroutine", "interval", l.config.RunInterval)

		ticker := time.NewTicker(l.config.RunInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !l.running.Load() {
					l.config.Log.Debug("Service stopped, exiting periodic check runner")
					return
				}
				l.config.Log.Info("Running periodic checks")
				if err := l.runChecks(ctx); err != nil {
					l.config.Log.Error("Error running periodic checks", "error", err)
				}

			case <-l.done:
				l.config.Log.Debug("Done signal received, stopping periodic check runner")
				return

			case <-ctx.Done():
				l.config.Log.Debug("Context canceled, stopping periodic check runner")
				l.running.Store(false)
				return
			}
		}
	}()
	l.config.Log.Debug("libcheck started successfully")
	return nil
}

// runChecks runs every check and publishes the results
func (l *libcheck) runChecks(ctx context.Context) error {
	l.config.Log.Info("Running all checks...")
	result, err := l.runner.RunAll(ctx, l.checks)
	if err != nil {
		l.config.Log.Error("Runtime error running checks", "error", err)
		return NewRuntimeError(err)
	}
	l.result = result
	l.lastRunID.Store(result.RunID)

	if err := l.formatter.FormatResults(l.registry.Results(), result); err != nil {
		l.config.Log.Warn("Failed to format results", "error", err)
	}
	if l.reporter != nil {
		l.reporter.ReportResults(result)
	}

	if err := l.publish(ctx, result.RunID); err != nil {
		return NewRuntimeError(err)
	}
	l.config.Log.Info("Check run completed", "run_id", result.RunID, "pass_rate", result.PassRate)
	return nil
}

// publish writes the report, offers it to the share target and archives it.
// A share failure is logged; it never fails the run.
func (l *libcheck) publish(ctx context.Context, runID string) error {
	var (
		path string
		data []byte
		err  error
	)
	if _, nop := l.target.(share.NopTarget); nop {
		path, data, err = l.exporter.WriteReport(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	} else {
		path, err = l.exporter.ShareResults(ctx, runID)
		if path == "" {
			return err
		}
		if data, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read report %s: %w", path, err)
		}
	}
	l.config.Log.Info("Report written", "path", path)

	if l.history == nil {
		return nil
	}
	run, err := l.history.Save(ctx, data)
	if err != nil {
		return err
	}
	l.config.Log.Debug("Archived run", "run_id", run.RunID, "pass_rate", run.PassRate)
	return nil
}

// LastRunID returns the id of the most recent run, or "" before the first run
func (l *libcheck) LastRunID() string {
	return l.lastRunID.Load().(string)
}

// Stop stops the libcheck service.
// Stop implements the cliapp.Lifecycle interface.
func (l *libcheck) Stop(ctx context.Context) error {
	l.config.Log.Info("Stopping libcheck")

	if !l.running.Load() {
		l.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	l.running.Store(false)

	l.config.Log.Debug("Sending done signal to goroutines")
	close(l.done)
	l.wg.Wait()

	l.service.Shutdown()
	if l.reporter != nil {
		l.reporter.Close()
	}
	if l.history != nil {
		if err := l.history.Close(); err != nil {
			l.config.Log.Warn("Failed to close history database", "error", err)
		}
	}

	l.config.Log.Info("libcheck stopped successfully")
	return nil
}

// Stopped returns true if the libcheck service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (l *libcheck) Stopped() bool {
	return !l.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (l *libcheck) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		l.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
