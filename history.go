package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/procore-go/internal/history"
)

var errHistoryDisabled = errors.New("run history is disabled (history_enabled = false)")

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past download runs",
		Long: `List recent download runs, newest first. With --run, list the files
that failed in that run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit, runID)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the failures of one run")

	return cmd
}

type runJSON struct {
	ID         string    `json:"id"`
	CompanyID  int64     `json:"company_id"`
	ProjectID  int64     `json:"project_id"`
	Project    string    `json:"project"`
	OutputDir  string    `json:"output_dir"`
	DryRun     bool      `json:"dry_run"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Folders    int       `json:"folders"`
	Files      int       `json:"files"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Bytes      int64     `json:"bytes"`
	Error      string    `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, limit int, runID string) error {
	cc := mustCLIContext(cmd.Context())
	if !cc.Cfg.HistoryEnabled {
		return errHistoryDisabled
	}

	store, err := history.Open(cmd.Context(), cc.Cfg.HistoryDB, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if runID != "" {
		failures, err := store.Failures(cmd.Context(), runID)
		if err != nil {
			return err
		}

		return printRunFailures(cc, failures)
	}

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	return printRuns(cc, runs)
}

func printRuns(cc *CLIContext, runs []history.Run) error {
	if cc.Flags.JSON {
		out := make([]runJSON, 0, len(runs))
		for i := range runs {
			r := &runs[i]
			out = append(out, runJSON{
				ID: r.ID, CompanyID: r.CompanyID, ProjectID: r.ProjectID, Project: r.ProjectName,
				OutputDir: r.OutputDir, DryRun: r.DryRun, Status: string(r.Status),
				StartedAt: r.StartedAt, FinishedAt: r.FinishedAt,
				Folders: r.Folders, Files: r.Files, Succeeded: r.Succeeded, Failed: r.Failed,
				Bytes: r.Bytes, Error: r.Error,
			})
		}

		return printJSON(cc.Stdout, out)
	}

	if len(runs) == 0 {
		cc.Statusf("No runs recorded yet.\n")
		return nil
	}

	rows := make([][]string, 0, len(runs))

	for i := range runs {
		r := &runs[i]

		status := string(r.Status)
		if r.DryRun {
			status += " (dry run)"
		}

		rows = append(rows, []string{
			formatTime(r.StartedAt),
			r.ProjectName,
			status,
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			formatSize(r.Bytes),
			formatDuration(r.StartedAt, r.FinishedAt),
			r.ID,
		})
	}

	printTable(cc.Stdout, []string{"STARTED", "PROJECT", "STATUS", "WRITTEN", "FAILED", "SIZE", "TOOK", "RUN"}, rows)

	return nil
}

func printRunFailures(cc *CLIContext, failures []history.FailureRecord) error {
	if cc.Flags.JSON {
		out := make([]failureReport, 0, len(failures))
		for _, f := range failures {
			out = append(out, failureReport{RemotePath: f.RemotePath, LocalPath: f.LocalPath, Error: f.Error})
		}

		return printJSON(cc.Stdout, out)
	}

	if len(failures) == 0 {
		cc.Statusf("No failures recorded for this run.\n")
		return nil
	}

	for _, f := range failures {
		fmt.Fprintf(cc.Stdout, "%s  %s\n    %s\n", formatTime(f.RecordedAt), f.RemotePath, f.Error)
	}

	return nil
}
