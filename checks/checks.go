// Package checks contains the built-in library checks. Each check exercises a
// client library and reports what it observed.
package checks

import (
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/nexus-skeleton/libcheck/catalog"
	"github.com/nexus-skeleton/libcheck/runner"
	"github.com/nexus-skeleton/libcheck/share"
)

// Deps are the collaborators checks may use
type Deps struct {
	Log        log.Logger
	TempDir    string       // Scratch directory, defaults to os.TempDir()
	ProbeURL   string       // URL probed by the netinfo check; the check is skipped when empty
	HTTPClient *http.Client // Client used by the netinfo check
	Target     share.Target // Share target inspected by the sharing check

	// Catalog lists the entries whose modules the library-versions check verifies
	Catalog   []catalog.Entry
	BuildInfo func() (*debug.BuildInfo, bool) // Defaults to debug.ReadBuildInfo
}

// Builtin returns every built-in check keyed by catalog id
func Builtin(deps Deps) map[string]runner.CheckFunc {
	if deps.Log == nil {
		deps.Log = log.NewLogger(log.DiscardHandler())
	}
	if deps.TempDir == "" {
		deps.TempDir = os.TempDir()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if deps.Target == nil {
		deps.Target = share.NopTarget{}
	}
	if deps.BuildInfo == nil {
		deps.BuildInfo = debug.ReadBuildInfo
	}

	return map[string]runner.CheckFunc{
		"observer":    Observer,
		"sqlite":      SQLite,
		"file-system": FileSystem(deps.TempDir),
		"sharing":     Sharing(deps.Target),
		"spreadsheet": Spreadsheet,
		"json-schema": JSONSchema,
		"yaml":        YAML,
		"netinfo":     NetInfo(deps.Log, deps.HTTPClient, deps.ProbeURL),
		"uuid-v4":     UUIDv4,
		"uuid-v7":     UUIDv7,

		"library-versions": LibraryVersions(deps.Catalog, deps.BuildInfo),
	}
}
