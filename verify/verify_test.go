package verify

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-skeleton/libcheck/catalog"
)

func buildInfo(deps ...*debug.Module) *debug.BuildInfo {
	return &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/nexus-skeleton/libcheck", Version: "(devel)"},
		Deps: deps,
	}
}

func TestModules(t *testing.T) {
	entries := []catalog.Entry{
		{ID: "yaml", Category: "Documents", Module: "gopkg.in/yaml.v3", Version: "^v3.0.1"},
		{ID: "uuid-v4", Category: "Utilities", Module: "github.com/google/uuid", Version: "^v1.6.0"},
		{ID: "uuid-v7", Category: "Utilities", Module: "github.com/google/uuid", Version: "^v1.6.0"},
		{ID: "sqlite", Category: "Storage", Module: "modernc.org/sqlite", Version: "~v1.40.0"},
		{ID: "mmkv", Category: "Storage", Module: "github.com/example/mmkv", Version: "v2.0.0"},
		{ID: "observer", Category: "State Management"},
	}
	info := buildInfo(
		&debug.Module{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
		&debug.Module{Path: "github.com/google/uuid", Version: "v1.6.0"},
		&debug.Module{Path: "modernc.org/sqlite", Version: "v1.41.0"},
	)

	results := Modules(entries, info)
	require.Len(t, results, 4)

	byModule := make(map[string]Result)
	for _, r := range results {
		byModule[r.Module] = r
	}

	yaml := byModule["gopkg.in/yaml.v3"]
	assert.Equal(t, StatusOK, yaml.Status)
	assert.Equal(t, "v3.0.1", yaml.Installed)
	assert.Equal(t, "^v3.0.1", yaml.Expected)

	uuid := byModule["github.com/google/uuid"]
	assert.Equal(t, StatusOK, uuid.Status)
	assert.Equal(t, []string{"uuid-v4", "uuid-v7"}, uuid.Checks)

	sqlite := byModule["modernc.org/sqlite"]
	assert.Equal(t, StatusVersionMismatch, sqlite.Status)
	assert.Equal(t, "Expected ~v1.40.0, found v1.41.0", sqlite.Message)

	mmkv := byModule["github.com/example/mmkv"]
	assert.Equal(t, StatusMissing, mmkv.Status)
	assert.Empty(t, mmkv.Installed)

	// category, then module
	var order []string
	for _, r := range results {
		order = append(order, r.Module)
	}
	assert.Equal(t, []string{
		"gopkg.in/yaml.v3",
		"github.com/example/mmkv",
		"modernc.org/sqlite",
		"github.com/google/uuid",
	}, order)

	s := Summarize(results)
	assert.Equal(t, Summary{Total: 4, OK: 2, Missing: 1, VersionMismatch: 1}, s)
	assert.False(t, s.Passed())
}

func TestModules_FollowsReplace(t *testing.T) {
	entries := []catalog.Entry{
		{ID: "geth", Category: "Chain", Module: "github.com/ethereum/go-ethereum", Version: ">=v1.101511.0"},
	}
	info := buildInfo(&debug.Module{
		Path:    "github.com/ethereum/go-ethereum",
		Version: "v1.15.11",
		Replace: &debug.Module{Path: "github.com/ethereum-optimism/op-geth", Version: "v1.101511.1"},
	})

	results := Modules(entries, info)
	require.Len(t, results, 1)
	assert.Equal(t, StatusOK, results[0].Status)
	assert.Equal(t, "v1.101511.1", results[0].Installed)
}

func TestModules_MainModuleAndBadConstraint(t *testing.T) {
	entries := []catalog.Entry{
		{ID: "self", Category: "Core", Module: "github.com/nexus-skeleton/libcheck"},
		{ID: "pinned-self", Category: "Core", Module: "github.com/nexus-skeleton/libcheck", Version: "v1.0.0"},
		{ID: "broken", Category: "Misc", Module: "example.com/broken", Version: "latest"},
	}

	results := Modules(entries, buildInfo())
	require.Len(t, results, 2)
	assert.Equal(t, StatusOK, results[0].Status, "an unconstrained module only has to be linked")
	assert.Equal(t, []string{"self", "pinned-self"}, results[0].Checks)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Contains(t, results[1].Message, "invalid version constraint")

	s := Summarize(results)
	assert.Equal(t, 1, s.Errors)
	assert.False(t, s.Passed())
}

func TestModules_NoBuildInfo(t *testing.T) {
	results := Modules([]catalog.Entry{{ID: "yaml", Module: "gopkg.in/yaml.v3"}}, nil)
	require.Len(t, results, 1)
	assert.Equal(t, StatusMissing, results[0].Status)
}

func TestSummary_MismatchStillPasses(t *testing.T) {
	assert.True(t, Summary{Total: 2, OK: 1, VersionMismatch: 1}.Passed())
}
