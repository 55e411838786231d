package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Constraint is a parsed version requirement
//
//	""        any version
//	v1.2.3    exactly v1.2.3 (a leading "=" is accepted)
//	>=v1.2.3  v1.2.3 or later
//	^v1.2.3   v1.2.3 or later within v1 (within v0.2 for v0 versions)
//	~v1.2.3   v1.2.3 or later within v1.2
//
// The leading "v" is optional.
type Constraint struct {
	Op      string
	Version string
}

var constraintOps = []string{">=", "^", "~", "="}

// ParseConstraint parses s. The empty string yields a constraint that allows every version.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Constraint{}, nil
	}
	c := Constraint{Op: "="}
	for _, op := range constraintOps {
		if strings.HasPrefix(s, op) {
			c.Op = op
			s = strings.TrimSpace(strings.TrimPrefix(s, op))
			break
		}
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return Constraint{}, fmt.Errorf("invalid version constraint %q", s)
	}
	c.Version = semver.Canonical(s)
	return c, nil
}

// Allows reports whether version satisfies c. Versions that are not valid
// semantic versions, such as "(devel)", satisfy only the empty constraint.
func (c Constraint) Allows(version string) bool {
	if c.Version == "" {
		return true
	}
	if !semver.IsValid(version) {
		return false
	}
	switch c.Op {
	case ">=":
		return semver.Compare(version, c.Version) >= 0
	case "^":
		same := semver.Major(version) == semver.Major(c.Version)
		if semver.Major(c.Version) == "v0" {
			same = semver.MajorMinor(version) == semver.MajorMinor(c.Version)
		}
		return same && semver.Compare(version, c.Version) >= 0
	case "~":
		return semver.MajorMinor(version) == semver.MajorMinor(c.Version) &&
			semver.Compare(version, c.Version) >= 0
	default:
		return semver.Compare(version, c.Version) == 0
	}
}

func (c Constraint) String() string {
	if c.Version == "" {
		return "any"
	}
	if c.Op == "=" {
		return c.Version
	}
	return c.Op + c.Version
}
