package libcheck

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/mod/semver"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"

	"github.com/nexus-skeleton/libcheck/flags"
	"github.com/nexus-skeleton/libcheck/service"
)

// Config holds the application configuration
type Config struct {
	CatalogPattern    string        // Glob of catalog files merged over the built-in catalog
	RunInterval       time.Duration // Interval between check runs
	RunOnce           bool          // Indicates if the service should exit after one run
	Concurrency       int           // Number of checks run at once
	CheckTimeout      time.Duration // Default timeout for checks, can be overridden by the catalog
	StrictTransitions bool          // Ignore mutations of finished checks
	ExportDir         string        // Directory reports are written to
	ShareDir          string        // Directory reports are copied to when sharing
	ShareS3Bucket     string        // Bucket reports are uploaded to when sharing
	ShareS3Prefix     string
	HistoryDB         string // Path to the report archive; empty disables archiving
	AppVersion        string
	Platform          string
	ProbeURL          string
	Service           service.Config
	Log               log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger, version string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval must not be negative, got %s", runInterval)
	}
	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", concurrency)
	}

	appVersion := ctx.String(flags.AppVersion.Name)
	if appVersion == "" {
		appVersion = version
	}
	if err := validateVersion(appVersion); err != nil {
		return nil, err
	}

	platform := ctx.String(flags.Platform.Name)
	if platform == "" {
		platform = runtime.GOOS + "/" + runtime.GOARCH
	}

	exportDir, err := filepath.Abs(ctx.String(flags.ExportDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for export directory '%s': %w", ctx.String(flags.ExportDir.Name), err)
	}
	shareDir, err := absOrEmpty(ctx.String(flags.ShareDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for share directory: %w", err)
	}
	historyDB := ctx.String(flags.HistoryDB.Name)
	if historyDB != "" && historyDB != ":memory:" {
		if historyDB, err = filepath.Abs(historyDB); err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for history database: %w", err)
		}
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		CatalogPattern:    ctx.String(flags.Catalog.Name),
		RunInterval:       runInterval,
		RunOnce:           runInterval == 0,
		Concurrency:       concurrency,
		CheckTimeout:      ctx.Duration(flags.CheckTimeout.Name),
		StrictTransitions: ctx.Bool(flags.StrictTransitions.Name),
		ExportDir:         exportDir,
		ShareDir:          shareDir,
		ShareS3Bucket:     ctx.String(flags.ShareS3Bucket.Name),
		ShareS3Prefix:     ctx.String(flags.ShareS3Prefix.Name),
		HistoryDB:         historyDB,
		AppVersion:        appVersion,
		Platform:          platform,
		ProbeURL:          ctx.String(flags.ProbeURL.Name),
		Service: service.Config{
			Healthz: service.ServerConfig{
				Enabled: ctx.Bool(flags.HealthzEnabled.Name),
				Host:    ctx.String(flags.HealthzHost.Name),
				Port:    ctx.String(flags.HealthzPort.Name),
			},
			Metrics: service.ServerConfig{
				Enabled: metricsCfg.Enabled,
				Host:    metricsCfg.ListenAddr,
				Port:    strconv.Itoa(metricsCfg.ListenPort),
			},
			API: service.ServerConfig{
				Enabled: ctx.Bool(flags.APIEnabled.Name),
				Host:    ctx.String(flags.APIHost.Name),
				Port:    ctx.String(flags.APIPort.Name),
			},
		},
		Log: log,
	}, nil
}

// validateVersion checks that v is a semantic version, with or without the
// leading "v". The caller's spelling is kept as is.
func validateVersion(v string) error {
	if v == "" {
		return fmt.Errorf("app version is required")
	}
	prefixed := v
	if !strings.HasPrefix(prefixed, "v") {
		prefixed = "v" + prefixed
	}
	if !semver.IsValid(prefixed) {
		return fmt.Errorf("app version %q is not a valid semantic version", v)
	}
	return nil
}

func absOrEmpty(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(p)
}

// logFields flattens the config for debug logging
func (c *Config) logFields() []any {
	return []any{
		"catalog", c.CatalogPattern,
		"runInterval", c.RunInterval,
		"runOnce", c.RunOnce,
		"concurrency", c.Concurrency,
		"checkTimeout", c.CheckTimeout,
		"strictTransitions", c.StrictTransitions,
		"exportDir", c.ExportDir,
		"historyDB", c.HistoryDB,
		"appVersion", c.AppVersion,
		"platform", c.Platform,
	}
}
