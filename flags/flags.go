package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "LIBCHECK"

var (
	Catalog = &cli.StringFlag{
		Name:    "catalog",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CATALOG"),
		Usage:   "Glob of catalog files (.yaml, .yml or .toml) merged over the built-in catalog, e.g. 'catalogs/**/*.yaml'",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between check runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   4,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Number of checks run at once",
	}
	CheckTimeout = &cli.DurationFlag{
		Name:    "check-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CHECK_TIMEOUT"),
		Usage:   "Timeout for checks without their own catalog timeout. 0 disables it.",
	}
	StrictTransitions = &cli.BoolFlag{
		Name:    "strict-transitions",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STRICT_TRANSITIONS"),
		Usage:   "Ignore status changes to checks that already finished",
	}
	ExportDir = &cli.StringFlag{
		Name:    "export-dir",
		Value:   "reports",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXPORT_DIR"),
		Usage:   "Directory JSON reports are written to",
	}
	ShareDir = &cli.StringFlag{
		Name:    "share.dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHARE_DIR"),
		Usage:   "Share reports by copying them into this directory",
	}
	ShareS3Bucket = &cli.StringFlag{
		Name:    "share.s3-bucket",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHARE_S3_BUCKET"),
		Usage:   "Share reports by uploading them to this S3 bucket",
	}
	ShareS3Prefix = &cli.StringFlag{
		Name:    "share.s3-prefix",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHARE_S3_PREFIX"),
		Usage:   "Key prefix for reports uploaded to S3",
	}
	HistoryDB = &cli.StringFlag{
		Name:    "history-db",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HISTORY_DB"),
		Usage:   "Path to the SQLite report archive. Reports are not archived when empty.",
	}
	AppVersion = &cli.StringFlag{
		Name:    "app-version",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "APP_VERSION"),
		Usage:   "Semantic version recorded in report metadata. Defaults to the binary version.",
	}
	Platform = &cli.StringFlag{
		Name:    "platform",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLATFORM"),
		Usage:   "Platform recorded in report metadata. Defaults to GOOS/GOARCH.",
	}
	ProbeURL = &cli.StringFlag{
		Name:    "probe-url",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROBE_URL"),
		Usage:   "URL probed by the netinfo check. The check is skipped when empty.",
	}
	APIEnabled = &cli.BoolFlag{
		Name:    "api.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_ENABLED"),
		Usage:   "Serve the results API",
	}
	APIHost = &cli.StringFlag{
		Name:    "api.host",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_HOST"),
		Usage:   "Results API listening address",
	}
	APIPort = &cli.StringFlag{
		Name:    "api.port",
		Value:   "8080",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "API_PORT"),
		Usage:   "Results API listening port",
	}
	HealthzEnabled = &cli.BoolFlag{
		Name:    "healthz.enabled",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_ENABLED"),
		Usage:   "Serve the healthz endpoint",
	}
	HealthzHost = &cli.StringFlag{
		Name:    "healthz.host",
		Value:   "0.0.0.0",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_HOST"),
		Usage:   "Healthz listening address",
	}
	HealthzPort = &cli.StringFlag{
		Name:    "healthz.port",
		Value:   "8085",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Healthz listening port",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Catalog,
	RunInterval,
	Concurrency,
	CheckTimeout,
	StrictTransitions,
	ExportDir,
	ShareDir,
	ShareS3Bucket,
	ShareS3Prefix,
	HistoryDB,
	AppVersion,
	Platform,
	ProbeURL,
	APIEnabled,
	APIHost,
	APIPort,
	HealthzEnabled,
	HealthzHost,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	if ctx.String(ShareDir.Name) != "" && ctx.String(ShareS3Bucket.Name) != "" {
		return fmt.Errorf("flags %s and %s are mutually exclusive", ShareDir.Name, ShareS3Bucket.Name)
	}
	return opflags.CheckRequiredXor(ctx)
}
