package checks

import (
	"context"
	"encoding/csv"
	"fmt"
	"reflect"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/share"
	"github.com/nexus-skeleton/libcheck/types"
)

// Spreadsheet renders a sample sheet to CSV and parses it back
func Spreadsheet(context.Context) (string, error) {
	rows := []table.Row{
		{"Alice", 30, "New York"},
		{"Bob", 25, "San Francisco"},
		{"Charlie", 35, "Los Angeles"},
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Age", "City"})
	t.AppendRows(rows)
	rendered := t.RenderCSV()

	records, err := csv.NewReader(strings.NewReader(rendered)).ReadAll()
	if err != nil {
		return "", fmt.Errorf("rendered sheet is not valid CSV: %w", err)
	}
	if len(records) != len(rows)+1 {
		return "", fmt.Errorf("expected %d CSV rows, got %d", len(rows)+1, len(records))
	}
	if records[1][0] != "Alice" || records[3][2] != "Los Angeles" {
		return "", fmt.Errorf("unexpected cell contents: %v", records)
	}
	return fmt.Sprintf("Rendered %d rows x %d columns", len(rows), len(records[0])), nil
}

// JSONSchema exports a scratch registry and validates it against the report schema
func JSONSchema(context.Context) (string, error) {
	reg := registry.NewRegistry(registry.Config{})
	reg.RegisterTest("sample", "Sample", "Documents")
	reg.StartTest("sample")
	reg.PassTest("sample", "ok")

	data, err := reg.ExportToJSON(types.AppInfo{AppVersion: "v0.0.0", Platform: "check"}, "schema-check")
	if err != nil {
		return "", err
	}
	if err := share.ValidateReport(data); err != nil {
		return "", err
	}
	return fmt.Sprintf("Validated a %d byte report", len(data)), nil
}

type yamlSample struct {
	Name    string            `yaml:"name"`
	Version int               `yaml:"version"`
	Tags    []string          `yaml:"tags"`
	Labels  map[string]string `yaml:"labels"`
}

// YAML encodes a document and decodes it back
func YAML(context.Context) (string, error) {
	in := yamlSample{
		Name:    "libcheck",
		Version: 3,
		Tags:    []string{"storage", "documents"},
		Labels:  map[string]string{"platform": "go"},
	}
	data, err := yaml.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode: %w", err)
	}
	var out yamlSample
	if err := yaml.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to decode: %w", err)
	}
	if !reflect.DeepEqual(in, out) {
		return "", fmt.Errorf("round trip mismatch: %+v != %+v", in, out)
	}
	return fmt.Sprintf("Round tripped %d bytes", len(data)), nil
}
