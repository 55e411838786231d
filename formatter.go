package libcheck

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nexus-skeleton/libcheck/runner"
	"github.com/nexus-skeleton/libcheck/types"
)

const maxDetailLen = 80

// ResultFormatter is responsible for formatting and displaying check results.
type ResultFormatter interface {
	FormatResults(records []types.TestRecord, result *runner.RunResult) error
}

// ConsoleResultFormatter renders results as a table grouped by category.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults formats and displays the check results.
func (f *ConsoleResultFormatter) FormatResults(records []types.TestRecord, result *runner.RunResult) error {
	f.logger.Debug("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Library Check Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{"Category", "Library", "Duration", "Status", "Details"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Category", AutoMerge: true},
		{Name: "Library", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Details", WidthMax: maxDetailLen, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, category := range categoriesOf(records) {
		for _, rec := range records {
			if rec.Category != category {
				continue
			}
			t.AppendRow(table.Row{
				rec.Category,
				rec.Name,
				formatDuration(rec.Duration()),
				getResultString(rec.Status),
				recordDetail(rec),
			})
		}
		t.AppendSeparator()
	}

	switch {
	case result.Summary.HasFailures():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case result.Summary.Passed == 0 && result.Summary.Skipped > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d skipped", result.Summary.Passed, result.Summary.Failed, result.Summary.Skipped),
		formatDuration(result.Duration),
		fmt.Sprintf("%d%%", result.PassRate),
		result.RunID,
	})

	t.Render()
	return nil
}

// categoriesOf returns categories in order of first appearance
func categoriesOf(records []types.TestRecord) []string {
	seen := make(map[string]bool)
	var categories []string
	for _, rec := range records {
		if !seen[rec.Category] {
			seen[rec.Category] = true
			categories = append(categories, rec.Category)
		}
	}
	return categories
}

// recordDetail picks the error for failures and the message otherwise, reduced to one clean line
func recordDetail(rec types.TestRecord) string {
	detail := rec.Message
	if rec.Status == types.TestStatusFailed {
		detail = rec.Error
	}
	return extractKeyMessage(detail)
}

// extractKeyMessage strips terminal escapes and keeps the first line, truncated for display
func extractKeyMessage(s string) string {
	s = strings.TrimSpace(stripansi.Strip(s))
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	if len(s) > maxDetailLen {
		return s[:maxDetailLen-3] + "..."
	}
	return s
}

// getResultString returns a symbol and word for a status
func getResultString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPassed:
		return "✓ pass"
	case types.TestStatusSkipped:
		return "- skip"
	case types.TestStatusFailed:
		return "✗ fail"
	case types.TestStatusRunning:
		return "… running"
	default:
		return "· pending"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
