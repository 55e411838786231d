// Package exitcodes defines the exit codes used by libcheck.
//
// * Success (0): every check passed or was skipped
// * CheckFailure (1): one or more checks failed
// * RuntimeErr (2): configuration, catalog or export errors
package exitcodes

const (
	Success      = 0 // All checks pass
	CheckFailure = 1 // Check failures
	RuntimeErr   = 2 // Runtime errors
)
