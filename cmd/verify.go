package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/nexus-skeleton/libcheck"
	"github.com/nexus-skeleton/libcheck/exitcodes"
	"github.com/nexus-skeleton/libcheck/flags"
	"github.com/nexus-skeleton/libcheck/verify"
)

// readBuildInfo is replaced in tests
var readBuildInfo = debug.ReadBuildInfo

var verifyCatalogFlag = &cli.StringFlag{
	Name:    flags.Catalog.Name,
	EnvVars: flags.Catalog.EnvVars,
	Usage:   flags.Catalog.Usage,
}

// VerifyCommand defines the "verify" command, which checks the catalog's
// libraries against the module versions linked into this binary.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Verify that every catalog library is linked at its expected version",
		Flags: []cli.Flag{
			verifyCatalogFlag,
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the results as JSON instead of a table",
			},
		},
		Action: verifyAction,
	}
}

type verifyOutput struct {
	Summary verify.Summary  `json:"summary"`
	Results []verify.Result `json:"results"`
}

func verifyAction(ctx *cli.Context) error {
	cat, err := libcheck.LoadCatalog(ctx.String(verifyCatalogFlag.Name))
	if err != nil {
		return libcheck.NewRuntimeError(err)
	}
	info, ok := readBuildInfo()
	if !ok {
		return libcheck.NewRuntimeError(fmt.Errorf("binary carries no module information"))
	}

	results := verify.Modules(cat.Enabled(), info)
	summary := verify.Summarize(results)

	w := ctx.App.Writer
	if w == nil {
		w = os.Stdout
	}
	if ctx.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verifyOutput{Summary: summary, Results: results}); err != nil {
			return err
		}
	} else {
		printVerification(w, results, summary)
	}

	if !summary.Passed() {
		return cli.Exit(fmt.Sprintf("%d libraries missing, %d invalid", summary.Missing, summary.Errors), exitcodes.CheckFailure)
	}
	return nil
}

func printVerification(w io.Writer, results []verify.Result, summary verify.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Library Verification")
	t.AppendHeader(table.Row{"Category", "Module", "Expected", "Installed", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	for _, r := range results {
		installed := r.Installed
		if installed == "" {
			installed = "-"
		}
		t.AppendRow(table.Row{r.Category, r.Module, r.Expected, installed, statusText(r.Status)})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", summary.Total})
	t.AppendFooter(table.Row{"", "", "", "OK", summary.OK})
	t.AppendFooter(table.Row{"", "", "", "Missing", summary.Missing})
	t.AppendFooter(table.Row{"", "", "", "Mismatch", summary.VersionMismatch})
	t.Render()
}

func statusText(s verify.Status) string {
	switch s {
	case verify.StatusOK:
		return text.FgGreen.Sprint("ok")
	case verify.StatusVersionMismatch:
		return text.FgYellow.Sprint("version mismatch")
	default:
		return text.FgRed.Sprint(string(s))
	}
}
