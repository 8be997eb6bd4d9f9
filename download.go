package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/procore-go/internal/history"
	"github.com/tonimelisma/procore-go/internal/mirror"
	"github.com/tonimelisma/procore-go/internal/procore"
)

type downloadOptions struct {
	CompanyID   int64
	ProjectIDs  []int64
	AllProjects bool
	DryRun      bool
}

func newDownloadCmd() *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Mirror project documents to local disk",
		Long: `Mirror the document tree of one or more projects.

Each project is written to <output>/<project name>/ with the same folder
structure as in Procore. Only the latest version of every file is kept and
existing files are overwritten. Deleted and recycled items are skipped.

Exit status is 0 when every file was written, 2 when some files failed and
1 when authorization or folder listing failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDownload(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.CompanyID, "company", 0, "company ID (see 'procore-go companies')")
	cmd.Flags().Int64SliceVar(&opts.ProjectIDs, "project", nil, "project ID to download (repeatable)")
	cmd.Flags().BoolVar(&opts.AllProjects, "all-projects", false, "download every project of the company")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list what would be downloaded without writing files")
	cmd.MarkFlagsMutuallyExclusive("project", "all-projects")

	return cmd
}

func (o downloadOptions) validate() error {
	if o.CompanyID <= 0 {
		return errCompanyRequired
	}

	if len(o.ProjectIDs) == 0 && !o.AllProjects {
		return errors.New("select projects with --project ID or --all-projects")
	}

	return nil
}

func runDownload(cmd *cobra.Command, opts downloadOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cc := mustCLIContext(cmd.Context())

	ctx, cancel := shutdownContext(cmd.Context(), cc.Logger)
	defer cancel()

	sess, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	client := sess.Client.ForCompany(opts.CompanyID)

	available, err := client.Projects(ctx, opts.CompanyID)
	if err != nil {
		return fmt.Errorf("listing: %w", err)
	}

	projects, err := selectProjects(available, opts)
	if err != nil {
		return err
	}

	store := openHistory(ctx, cc)
	if store != nil {
		defer store.Close()
	}

	job := &downloadJob{
		cc:        cc,
		companyID: opts.CompanyID,
		dryRun:    opts.DryRun,
		lister:    client,
		fetcher:   client,
		history:   store,
	}

	total, err := job.run(ctx, projects)
	if err != nil {
		return err
	}

	return total.Err()
}

// selectProjects picks the projects named on the command line out of the
// company's project list, preserving the order the user gave.
func selectProjects(available []procore.Project, opts downloadOptions) ([]procore.Project, error) {
	if opts.AllProjects {
		if len(available) == 0 {
			return nil, fmt.Errorf("company %d has no projects", opts.CompanyID)
		}

		return available, nil
	}

	byID := make(map[int64]procore.Project, len(available))
	for _, p := range available {
		byID[p.ID] = p
	}

	var (
		selected []procore.Project
		missing  []string
		seen     = make(map[int64]bool)
	)

	for _, id := range opts.ProjectIDs {
		if seen[id] {
			continue
		}

		seen[id] = true

		p, ok := byID[id]
		if !ok {
			missing = append(missing, strconv.FormatInt(id, 10))
			continue
		}

		selected = append(selected, p)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("project(s) %s not found in company %d", strings.Join(missing, ", "), opts.CompanyID)
	}

	return selected, nil
}

// openHistory opens the run ledger. A ledger that cannot be opened is
// logged and skipped; it never blocks a download.
func openHistory(ctx context.Context, cc *CLIContext) historyRecorder {
	if !cc.Cfg.HistoryEnabled {
		return nil
	}

	store, err := history.Open(ctx, cc.Cfg.HistoryDB, cc.Logger)
	if err != nil {
		cc.Logger.Warn("run history unavailable", slog.String("error", err.Error()))
		return nil
	}

	return store
}

// historyRecorder is the part of history.Store a download uses.
type historyRecorder interface {
	BeginRun(ctx context.Context, start history.RunStart) (string, error)
	FinishRun(ctx context.Context, id string, out history.RunOutcome) error
	RecordFailures(ctx context.Context, id string, failures []history.FailureRecord) error
	Close() error
}

// downloadJob mirrors a list of projects one after another.
type downloadJob struct {
	cc        *CLIContext
	companyID int64
	dryRun    bool
	lister    mirror.FolderLister
	fetcher   mirror.Fetcher
	history   historyRecorder // nil when disabled
}

// projectReport is the per-project result shown to the user.
type projectReport struct {
	RunID      string               `json:"run_id"`
	ProjectID  int64                `json:"project_id"`
	Project    string               `json:"project"`
	Path       string               `json:"path"`
	Folders    int                  `json:"folders"`
	Files      int                  `json:"files"`
	Written    int                  `json:"written"`
	Bytes      int64                `json:"bytes"`
	Collisions int                  `json:"collisions,omitempty"`
	Failures   []failureReport      `json:"failures,omitempty"`
	Planned    []plannedDownloadRow `json:"planned,omitempty"`
	Duration   string               `json:"duration"`
}

type failureReport struct {
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path"`
	Error      string `json:"error"`
}

type plannedDownloadRow struct {
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path"`
}

// run mirrors each project in order. A listing failure aborts the whole
// job; download failures are collected into the returned summary.
func (j *downloadJob) run(ctx context.Context, projects []procore.Project) (*mirror.Summary, error) {
	total := &mirror.Summary{}
	reports := make([]projectReport, 0, len(projects))

	for _, p := range projects {
		rep, sum, err := j.mirrorProject(ctx, p)
		if err != nil {
			return nil, err
		}

		total.Merge(sum)
		reports = append(reports, rep)

		if !j.cc.Flags.JSON {
			j.printReport(rep)
		}
	}

	if j.cc.Flags.JSON {
		if err := printJSON(j.cc.Stdout, reports); err != nil {
			return nil, err
		}
	}

	return total, nil
}

// mirrorProject walks one project and, unless this is a dry run, writes
// its files. The returned error is non-nil only when the walk failed.
func (j *downloadJob) mirrorProject(ctx context.Context, p procore.Project) (projectReport, *mirror.Summary, error) {
	started := time.Now()
	runID := uuid.New().String()
	logger := j.cc.Logger.With(
		slog.String("run_id", runID),
		slog.Int64("project_id", p.ID),
	)

	j.cc.Statusf("Mirroring %q...\n", p.Name)

	j.beginHistory(ctx, logger, history.RunStart{
		ID:          runID,
		CompanyID:   j.companyID,
		ProjectID:   p.ID,
		ProjectName: p.Name,
		OutputDir:   j.cc.Cfg.OutputDir,
		DryRun:      j.dryRun,
	})

	walk, err := mirror.NewWalker(j.lister, logger).Walk(ctx, mirror.WalkRequest{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		OutputRoot:  j.cc.Cfg.OutputDir,
	})
	if err != nil {
		j.finishHistory(logger, runID, history.RunOutcome{Status: failedStatus(ctx), Err: err}, nil)
		return projectReport{}, nil, fmt.Errorf("listing: %w", err)
	}

	rep := projectReport{
		RunID:      runID,
		ProjectID:  p.ID,
		Project:    p.Name,
		Path:       walk.Root.LocalPath,
		Folders:    walk.Stats.Folders,
		Files:      len(walk.Tasks),
		Collisions: walk.Stats.Collisions,
	}

	if j.dryRun {
		for _, t := range walk.Tasks {
			rep.Planned = append(rep.Planned, plannedDownloadRow{RemotePath: t.RemotePath, LocalPath: t.LocalPath})
		}

		rep.Duration = formatDuration(started, time.Now())
		j.finishHistory(logger, runID, history.RunOutcome{
			Status:  history.StatusOK,
			Folders: walk.Stats.Folders,
			Files:   len(walk.Tasks),
		}, nil)

		return rep, &mirror.Summary{}, nil
	}

	m := mirror.NewMaterializer(j.fetcher, mirror.MaterializerOptions{
		DirPerm:  j.cc.Cfg.DirMode(),
		FilePerm: j.cc.Cfg.FileMode(),
	}, logger)

	// Per-file writes create missing parents too, so this only matters for
	// folders that hold no files.
	if err := m.EnsureDirs(walk.Root); err != nil {
		logger.Warn("could not create every folder", slog.String("error", err.Error()))
	}

	sum := m.Run(ctx, walk.Tasks)

	rep.Written = len(sum.Succeeded)
	rep.Bytes = sum.Bytes
	rep.Duration = formatDuration(started, time.Now())

	for _, f := range sum.Failed {
		rep.Failures = append(rep.Failures, failureReport{
			RemotePath: f.Task.RemotePath,
			LocalPath:  f.Task.LocalPath,
			Error:      f.Err.Error(),
		})
	}

	j.finishHistory(logger, runID, history.RunOutcome{
		Status:    summaryStatus(ctx, sum),
		Folders:   walk.Stats.Folders,
		Files:     len(walk.Tasks),
		Succeeded: len(sum.Succeeded),
		Failed:    len(sum.Failed),
		Bytes:     sum.Bytes,
		Err:       sum.Err(),
	}, sum.Failed)

	return rep, sum, nil
}

func (j *downloadJob) beginHistory(ctx context.Context, logger *slog.Logger, start history.RunStart) {
	if j.history == nil {
		return
	}

	if _, err := j.history.BeginRun(ctx, start); err != nil {
		logger.Warn("recording run start failed", slog.String("error", err.Error()))
	}
}

// finishHistory records the outcome. It runs on a fresh context so a
// canceled run is still recorded as canceled.
func (j *downloadJob) finishHistory(logger *slog.Logger, runID string, out history.RunOutcome, failed []mirror.Failure) {
	if j.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(failed) > 0 {
		records := make([]history.FailureRecord, 0, len(failed))
		for _, f := range failed {
			records = append(records, history.FailureRecord{
				RemotePath: f.Task.RemotePath,
				LocalPath:  f.Task.LocalPath,
				Error:      f.Err.Error(),
			})
		}

		if err := j.history.RecordFailures(ctx, runID, records); err != nil {
			logger.Warn("recording failures failed", slog.String("error", err.Error()))
		}
	}

	if err := j.history.FinishRun(ctx, runID, out); err != nil {
		logger.Warn("recording run outcome failed", slog.String("error", err.Error()))
	}
}

func failedStatus(ctx context.Context) history.Status {
	if ctx.Err() != nil {
		return history.StatusCanceled
	}

	return history.StatusFailed
}

func summaryStatus(ctx context.Context, sum *mirror.Summary) history.Status {
	switch {
	case len(sum.Failed) == 0:
		return history.StatusOK
	case ctx.Err() != nil:
		return history.StatusCanceled
	default:
		return history.StatusPartial
	}
}

func (j *downloadJob) printReport(rep projectReport) {
	w := j.cc.Stdout

	if j.dryRun {
		for _, row := range rep.Planned {
			fmt.Fprintf(w, "%s -> %s\n", row.RemotePath, row.LocalPath)
		}

		fmt.Fprintf(w, "%s: %d folders, %d files would be downloaded to %s\n",
			rep.Project, rep.Folders, rep.Files, rep.Path)
		j.printCollisions(rep)

		return
	}

	fmt.Fprintf(w, "%s: %d of %d files written (%s) to %s in %s\n",
		rep.Project, rep.Written, rep.Files, formatSize(rep.Bytes), rep.Path, rep.Duration)
	j.printCollisions(rep)

	if len(rep.Failures) == 0 {
		return
	}

	fmt.Fprintf(w, "%d file(s) failed:\n", len(rep.Failures))

	for _, f := range rep.Failures {
		fmt.Fprintf(w, "  %s: %s\n", f.RemotePath, f.Error)
	}
}

func (j *downloadJob) printCollisions(rep projectReport) {
	if rep.Collisions > 0 {
		fmt.Fprintf(j.cc.Stdout, "%d remote name(s) map to a local path already in use; the later entry wins\n",
			rep.Collisions)
	}
}
