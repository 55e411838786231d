package checks

import (
	"context"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-skeleton/libcheck/catalog"
	"github.com/nexus-skeleton/libcheck/runner"
)

func staticBuildInfo(deps ...*debug.Module) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Deps: deps}, true
	}
}

var versionEntries = []catalog.Entry{
	{ID: "yaml", Category: "Documents", Module: "gopkg.in/yaml.v3", Version: "^v3.0.1"},
	{ID: "uuid-v4", Category: "Utilities", Module: "github.com/google/uuid", Version: "^v1.6.0"},
	{ID: "observer", Category: "State Management"},
}

func TestLibraryVersions(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		check := LibraryVersions(versionEntries, staticBuildInfo(
			&debug.Module{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
			&debug.Module{Path: "github.com/google/uuid", Version: "v1.6.0"},
		))
		msg, err := check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2 of 2 libraries at expected versions", msg)
	})

	t.Run("version mismatch is a warning", func(t *testing.T) {
		check := LibraryVersions(versionEntries, staticBuildInfo(
			&debug.Module{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
			&debug.Module{Path: "github.com/google/uuid", Version: "v1.5.0"},
		))
		msg, err := check(context.Background())
		require.NoError(t, err)
		assert.Contains(t, msg, "1 of 2 libraries at expected versions")
		assert.Contains(t, msg, "github.com/google/uuid: Expected ^v1.6.0, found v1.5.0")
	})

	t.Run("missing fails", func(t *testing.T) {
		check := LibraryVersions(versionEntries, staticBuildInfo(
			&debug.Module{Path: "github.com/google/uuid", Version: "v1.6.0"},
		))
		_, err := check(context.Background())
		require.Error(t, err)
		assert.Equal(t, "1 of 2 libraries unavailable: gopkg.in/yaml.v3 (missing)", err.Error())
	})

	t.Run("no build info", func(t *testing.T) {
		check := LibraryVersions(versionEntries, func() (*debug.BuildInfo, bool) { return nil, false })
		_, err := check(context.Background())
		assert.ErrorIs(t, err, runner.ErrSkipped)
	})

	t.Run("no modules in catalog", func(t *testing.T) {
		check := LibraryVersions(versionEntries[2:], staticBuildInfo(
			&debug.Module{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
		))
		_, err := check(context.Background())
		reason, ok := runner.SkipReason(err)
		require.True(t, ok)
		assert.Equal(t, "no catalog entry names a module", reason)
	})
}

func TestLibraryVersions_DefaultCatalog(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	var deps []*debug.Module
	for _, e := range c.Enabled() {
		if e.Module == "" {
			continue
		}
		constraint, err := catalog.ParseConstraint(e.Version)
		require.NoError(t, err)
		deps = append(deps, &debug.Module{Path: e.Module, Version: constraint.Version})
	}
	require.NotEmpty(t, deps)

	impls := Builtin(Deps{Catalog: c.Enabled(), BuildInfo: staticBuildInfo(deps...)})
	msg, err := impls["library-versions"](context.Background())
	require.NoError(t, err)
	assert.NotContains(t, msg, "mismatch")
}
