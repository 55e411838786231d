package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"

	"github.com/nexus-skeleton/libcheck/flags"
	"github.com/nexus-skeleton/libcheck/history"
	"github.com/nexus-skeleton/libcheck/types"
)

var historyDBFlag = &cli.StringFlag{
	Name:     "history-db",
	Required: true,
	EnvVars:  opservice.PrefixEnvVar(flags.EnvVarPrefix, "HISTORY_DB"),
	Usage:    "Path to the SQLite report archive",
}

// HistoryCommand defines the "history" command for inspecting archived runs.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect archived check runs",
		Flags: []cli.Flag{historyDBFlag},
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List archived runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Maximum number of runs to list. 0 lists every run.",
					},
				},
				Action: historyListAction,
			},
			{
				Name:      "show",
				Usage:     "Print the archived JSON report of a run",
				ArgsUsage: "<run-id>",
				Action:    historyShowAction,
			},
		},
	}
}

func historyListAction(ctx *cli.Context) error {
	store, err := history.Open(ctx.Context, ctx.String(historyDBFlag.Name))
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx.Context, ctx.Int("limit"))
	if err != nil {
		return err
	}
	printRuns(ctx.App.Writer, runs)
	return nil
}

func historyShowAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one run id, got %d arguments", ctx.NArg())
	}
	store, err := history.Open(ctx.Context, ctx.String(historyDBFlag.Name))
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.Get(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.App.Writer, string(report))
	return err
}

func printRuns(w io.Writer, runs []history.Run) {
	if w == nil {
		w = os.Stdout
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Archived Runs (%d)", len(runs)))
	t.AppendHeader(table.Row{"Run ID", "Exported At", "Total", "Passed", "Failed", "Skipped", "Pass Rate"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Total", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Pass Rate", Align: text.AlignRight},
	})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.RunID,
			types.FormatISOTime(run.ExportedAt),
			run.Total,
			run.Passed,
			run.Failed,
			run.Skipped,
			fmt.Sprintf("%d%%", run.PassRate),
		})
	}
	t.Render()
}
