// Package verify compares the libraries named by the catalog with the module
// versions linked into the running binary.
package verify

import (
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/nexus-skeleton/libcheck/catalog"
)

type Status string

const (
	StatusOK              Status = "ok"
	StatusMissing         Status = "missing"
	StatusVersionMismatch Status = "version_mismatch"
	StatusError           Status = "error"
)

// Result is the verification outcome of one library
type Result struct {
	Module    string   `json:"module"`
	Category  string   `json:"category"`
	Checks    []string `json:"checks"`
	Expected  string   `json:"expectedVersion"`
	Installed string   `json:"installedVersion,omitempty"`
	Status    Status   `json:"status"`
	Message   string   `json:"message,omitempty"`
}

// Summary counts results by status
type Summary struct {
	Total           int `json:"total"`
	OK              int `json:"ok"`
	Missing         int `json:"missing"`
	VersionMismatch int `json:"versionMismatch"`
	Errors          int `json:"errors"`
}

// Passed reports whether every library is linked. Version mismatches are warnings.
func (s Summary) Passed() bool {
	return s.Missing == 0 && s.Errors == 0
}

// Modules verifies every entry that names a module against info. Entries
// sharing a module are verified once; results are sorted by category, then module.
func Modules(entries []catalog.Entry, info *debug.BuildInfo) []Result {
	linked := linkedVersions(info)

	byModule := make(map[string]*Result)
	var out []*Result
	for _, e := range entries {
		if e.Module == "" {
			continue
		}
		if r, ok := byModule[e.Module]; ok {
			r.Checks = append(r.Checks, e.ID)
			continue
		}
		r := &Result{Module: e.Module, Category: e.Category, Checks: []string{e.ID}}
		byModule[e.Module] = r
		out = append(out, r)

		c, err := catalog.ParseConstraint(e.Version)
		if err != nil {
			r.Status = StatusError
			r.Expected = e.Version
			r.Message = err.Error()
			continue
		}
		r.Expected = c.String()

		installed, ok := linked[e.Module]
		if !ok {
			r.Status = StatusMissing
			r.Message = "Module not linked into this binary"
			continue
		}
		r.Installed = installed
		if !c.Allows(installed) {
			r.Status = StatusVersionMismatch
			r.Message = fmt.Sprintf("Expected %s, found %s", r.Expected, installed)
			continue
		}
		r.Status = StatusOK
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Module < out[j].Module
	})
	results := make([]Result, len(out))
	for i, r := range out {
		results[i] = *r
	}
	return results
}

// Summarize counts results by status
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			s.OK++
		case StatusMissing:
			s.Missing++
		case StatusVersionMismatch:
			s.VersionMismatch++
		case StatusError:
			s.Errors++
		}
	}
	return s
}

// linkedVersions maps module path to the version actually linked, following replacements
func linkedVersions(info *debug.BuildInfo) map[string]string {
	out := make(map[string]string)
	if info == nil {
		return out
	}
	if info.Main.Path != "" {
		out[info.Main.Path] = info.Main.Version
	}
	for _, dep := range info.Deps {
		if dep == nil {
			continue
		}
		version := dep.Version
		if dep.Replace != nil && dep.Replace.Version != "" {
			version = dep.Replace.Version
		}
		out[dep.Path] = version
	}
	return out
}
