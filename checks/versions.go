package checks

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/nexus-skeleton/libcheck/catalog"
	"github.com/nexus-skeleton/libcheck/runner"
	"github.com/nexus-skeleton/libcheck/verify"
)

// LibraryVersions verifies that every catalog library is linked at an
// acceptable version. A missing library fails the check; a version mismatch
// is reported in the message only.
func LibraryVersions(entries []catalog.Entry, readBuildInfo func() (*debug.BuildInfo, bool)) runner.CheckFunc {
	return func(context.Context) (string, error) {
		info, ok := readBuildInfo()
		if !ok || len(info.Deps) == 0 {
			return "", runner.Skip("binary carries no module information")
		}
		results := verify.Modules(entries, info)
		if len(results) == 0 {
			return "", runner.Skip("no catalog entry names a module")
		}

		s := verify.Summarize(results)
		if !s.Passed() {
			var broken []string
			for _, r := range results {
				switch r.Status {
				case verify.StatusMissing:
					broken = append(broken, r.Module+" (missing)")
				case verify.StatusError:
					broken = append(broken, r.Module+" ("+r.Message+")")
				}
			}
			return "", fmt.Errorf("%d of %d libraries unavailable: %s", s.Missing+s.Errors, s.Total, strings.Join(broken, ", "))
		}

		msg := fmt.Sprintf("%d of %d libraries at expected versions", s.OK, s.Total)
		if s.VersionMismatch > 0 {
			var warnings []string
			for _, r := range results {
				if r.Status == verify.StatusVersionMismatch {
					warnings = append(warnings, r.Module+": "+r.Message)
				}
			}
			msg += fmt.Sprintf("; %d version mismatches: %s", s.VersionMismatch, strings.Join(warnings, "; "))
		}
		return msg, nil
	}
}
