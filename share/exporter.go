// Package share writes exported registry reports to disk and hands them to a share target.
package share

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nexus-skeleton/libcheck/metrics"
	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/types"
)

// ErrSharingUnavailable is returned when the configured target cannot accept a share
var ErrSharingUnavailable = errors.New("sharing is not available on this device")

// Config holds exporter configuration
type Config struct {
	Registry *registry.Registry
	Dir      string // Directory reports are written to
	Target   Target
	Info     types.AppInfo
	Options  Options
	Log      log.Logger
	Clock    func() time.Time

	SkipValidation bool
}

// Exporter writes registry reports and shares them
type Exporter struct {
	config Config
}

// NewExporter creates a new exporter
func NewExporter(cfg Config) (*Exporter, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Dir == "" {
		return nil, errors.New("export directory is required")
	}
	if cfg.Target == nil {
		cfg.Target = NopTarget{}
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions
	}
	if cfg.Log == nil {
		cfg.Log = log.NewLogger(log.DiscardHandler())
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Exporter{config: cfg}, nil
}

// ReportFilename returns the name of a report written at t
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("test-results-%d.json", t.UnixMilli())
}

// WriteReport exports the registry, validates the document and writes it to
// the export directory. It returns the written path and the document.
func (e *Exporter) WriteReport(ctx context.Context, runID string) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	data, err := e.config.Registry.ExportToJSON(e.config.Info, runID)
	if err != nil {
		return "", nil, err
	}
	if !e.config.SkipValidation {
		if err := ValidateReport(data); err != nil {
			return "", nil, err
		}
	}

	if err := os.MkdirAll(e.config.Dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create export directory %s: %w", e.config.Dir, err)
	}
	path := filepath.Join(e.config.Dir, ReportFilename(e.config.Clock()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to write report %s: %w", path, err)
	}
	e.config.Log.Debug("Wrote report", "path", path, "bytes", len(data))
	return path, data, nil
}

// ShareResults writes a report and offers it to the target. Every failure is
// wrapped in a single descriptive error. Registry state is never modified.
func (e *Exporter) ShareResults(ctx context.Context, runID string) (string, error) {
	path, err := e.share(ctx, runID)
	metrics.RecordShare(e.config.Target.Name(), err)
	if err != nil {
		metrics.RecordErrorDetails("share", err)
		e.config.Log.Error("Failed to share results", "target", e.config.Target.Name(), "err", err)
		return path, fmt.Errorf("failed to share results: %w", err)
	}
	e.config.Log.Info("Shared results", "target", e.config.Target.Name(), "path", path)
	return path, nil
}

func (e *Exporter) share(ctx context.Context, runID string) (string, error) {
	path, _, err := e.WriteReport(ctx, runID)
	if err != nil {
		return "", err
	}
	if !e.config.Target.Available(ctx) {
		return path, ErrSharingUnavailable
	}
	if err := e.config.Target.Share(ctx, path, e.config.Options); err != nil {
		return path, err
	}
	return path, nil
}
