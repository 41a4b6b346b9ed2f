package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/artpar/promoter/internal/core/classify"
	"github.com/artpar/promoter/internal/core/domain"
	"github.com/artpar/promoter/internal/core/summary"
	"github.com/artpar/promoter/internal/shell/auth"
	"github.com/artpar/promoter/internal/shell/deployer"
	"github.com/artpar/promoter/internal/shell/fabric"
	"github.com/artpar/promoter/internal/shell/orchestrator"
	"github.com/artpar/promoter/internal/shell/provisioner"
	"github.com/artpar/promoter/internal/shell/report"
	"github.com/artpar/promoter/internal/shell/source"
	"github.com/artpar/promoter/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitAuthError      = 2
	ExitProvisionError = 3
	ExitSourceError    = 4
	ExitItemsFailed    = 5
	ExitHistoryError   = 6
)

// =============================================================================
// Run Errors
// =============================================================================

// RunError represents a command failure with its exit code. Stage is set
// when a pre-flight stage aborted a deployment.
type RunError struct {
	Op       string
	Stage    domain.Stage
	Err      error
	ExitCode int
}

func (e *RunError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s failed: %v", e.Op, e.Stage, e.Err)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.ExitCode
	}
	return exitCodeForStage(err)
}

func exitCodeForStage(err error) int {
	stage, _ := domain.StageOf(err)
	switch stage {
	case domain.StageAuthentication:
		return ExitAuthError
	case domain.StageProvisioning:
		return ExitProvisionError
	case domain.StageEnumeration:
		return ExitSourceError
	default:
		return ExitConfigError
	}
}

// stageError wraps a pre-flight failure with its stage and exit code.
func stageError(op string, err error) *RunError {
	stage, _ := domain.StageOf(err)
	return &RunError{Op: op, Stage: stage, Err: err, ExitCode: exitCodeForStage(err)}
}

// =============================================================================
// App
// =============================================================================

// App wires the configured components for one command invocation.
type App struct {
	cfg     *Config
	logger  *slog.Logger
	out     io.Writer
	fs      afero.Fs
	clone   source.CloneFunc
	tokens  auth.TokenProvider
	now     func() time.Time
	noColor bool
}

// NewApp creates an app writing human output to out.
func NewApp(cfg *Config, logger *slog.Logger, out io.Writer) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		out:    out,
		fs:     afero.NewOsFs(),
		now:    time.Now,
	}
}

func (a *App) tokenProvider() (auth.TokenProvider, error) {
	if a.tokens != nil {
		return a.tokens, nil
	}
	if a.cfg.Auth.Token != "" {
		return auth.StaticTokenProvider(a.cfg.Auth.Token), nil
	}
	return auth.NewClientSecretProvider(a.cfg.Auth.TenantID, a.cfg.Auth.ClientID, a.cfg.Auth.ClientSecret, a.logger)
}

func (a *App) client() (*fabric.Client, error) {
	tokens, err := a.tokenProvider()
	if err != nil {
		return nil, stageError("NewClient", err)
	}
	return fabric.NewClient(fabric.Config{
		BaseURL: a.cfg.Fabric.BaseURL,
		Timeout: a.cfg.Fabric.Timeout,
	}, tokens, a.logger), nil
}

// needsClient reports whether the platform API is used at all.
func (a *App) needsClient() bool {
	return a.cfg.Source.Mode == SourceRemote || !a.cfg.Deploy.DryRun
}

// itemSource builds the configured source. The returned cleanup is never nil.
func (a *App) itemSource(client *fabric.Client) (source.ItemSource, afero.Fs, func()) {
	noop := func() {}
	switch a.cfg.Source.Mode {
	case SourceLocal:
		return source.NewLocalDirectorySource(a.fs, a.cfg.Source.Path, a.logger), a.fs, noop
	case SourceGit:
		src := source.NewGitSource(a.cfg.Source.RepoURL, a.cfg.Source.Branch, a.clone, a.logger)
		return src, afero.NewOsFs(), func() {
			if err := src.Close(); err != nil {
				a.logger.Warn("failed to remove checkout", "dir", src.Dir(), "error", err)
			}
		}
	default:
		return source.NewRemoteWorkspaceSource(client, a.cfg.Source.WorkspaceID, a.logger), a.fs, noop
	}
}

func (a *App) openStore() (store.Store, error) {
	if a.cfg.History.DSN == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(a.cfg.History.DSN)
	if err != nil {
		return nil, &RunError{Op: "OpenHistory", Err: err, ExitCode: ExitHistoryError}
	}
	return s, nil
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy runs the full promotion pipeline.
func (a *App) Deploy(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return &RunError{Op: "Validate", Err: err, ExitCode: ExitConfigError}
	}
	filter, _ := classify.ParseTypeFilter(a.cfg.Deploy.Types)

	history, err := a.openStore()
	if err != nil {
		a.logger.Warn("run history disabled", "error", err)
	}
	if history != nil {
		defer history.Close()
	}

	run := &store.Run{
		ID:         store.NewRunID(),
		SourceMode: a.cfg.Source.Mode,
		TargetID:   a.cfg.Target.WorkspaceID,
		TargetName: a.cfg.Target.WorkspaceName,
		TypeFilter: filter.String(),
		DryRun:     a.cfg.Deploy.DryRun,
		StartedAt:  a.now(),
	}
	logger := a.logger.With("run_id", run.ID)
	run.Source = a.cfg.Source.Mode

	var client *fabric.Client
	if a.needsClient() {
		if client, err = a.client(); err != nil {
			return a.abort(ctx, history, run, err)
		}
	}
	src, pkgFS, cleanup := a.itemSource(client)
	defer cleanup()
	run.Source = src.Describe()

	if history != nil {
		if err := history.CreateRun(ctx, run); err != nil {
			logger.Warn("run history disabled", "error", err)
			history = nil
		}
	}

	target, err := a.ensureTarget(ctx, client, logger)
	if err != nil {
		return a.abort(ctx, history, run, err)
	}
	run.TargetID, run.TargetName = target.ID, target.Name

	opts := []orchestrator.Option{orchestrator.WithObserver(progressObserver(logger))}
	var recorder *store.Recorder
	if history != nil {
		recorder = store.NewRecorder(ctx, history, run.ID, logger)
		opts = append(opts, orchestrator.WithObserver(recorder))
	}
	orch := orchestrator.New(a.action(client, pkgFS, logger), logger, opts...)

	sum, err := orch.Run(ctx, src, target, filter)
	if err != nil {
		return a.abort(ctx, history, run, err)
	}

	rep := sum.Report()
	finished := a.now()
	if err := summary.Render(a.out, rep, summary.RenderOptions{
		NoColor: a.noColor,
		Source:  src.Describe(),
		Target:  targetLabel(target),
	}); err != nil {
		logger.Warn("failed to render summary", "error", err)
	}

	if a.cfg.Report.Path != "" {
		doc := report.Document{
			RunID:      run.ID,
			Source:     src.Describe(),
			Target:     target,
			TypeFilter: filter.String(),
			DryRun:     a.cfg.Deploy.DryRun,
			StartedAt:  run.StartedAt,
			FinishedAt: finished,
			Warnings:   report.WarningStrings(source.Warnings(src)),
			Summary:    rep,
		}
		if err := report.Write(a.fs, a.cfg.Report.Path, doc); err != nil {
			logger.Error("failed to write report", "path", a.cfg.Report.Path, "error", err)
		} else {
			logger.Info("report written", "path", a.cfg.Report.Path)
		}
	}

	if history != nil {
		run.Complete(rep, finished)
		if err := errors.Join(recorder.Err(), history.FinishRun(ctx, run)); err != nil {
			logger.Warn("failed to record run history", "error", err)
		}
	}

	if rep.HasFailures() {
		return &RunError{
			Op:       "Deploy",
			Err:      fmt.Errorf("%d of %d items failed", rep.FailedCount, rep.Total),
			ExitCode: ExitItemsFailed,
		}
	}
	return nil
}

// ensureTarget provisions the target workspace and grants the role. A dry
// run only resolves the configured reference and changes nothing.
func (a *App) ensureTarget(ctx context.Context, client *fabric.Client, logger *slog.Logger) (domain.WorkspaceHandle, error) {
	if a.cfg.Deploy.DryRun {
		handle := domain.WorkspaceHandle{ID: a.cfg.Target.WorkspaceID, Name: a.cfg.Target.WorkspaceName}
		logger.Info("dry run, target workspace not provisioned", "target", a.cfg.Target.Ref().String())
		return handle, nil
	}

	prov := provisioner.New(client, provisioner.RoleConfig{
		Skip:      a.cfg.Role.Skip,
		Mandatory: a.cfg.Role.Mandatory,
	}, logger)

	p, err := prov.EnsureWorkspace(ctx, a.cfg.Target.Ref(), a.cfg.Target.CapacityID)
	if err != nil {
		return domain.WorkspaceHandle{}, err
	}
	logger.Info("target workspace ready",
		"workspace_id", p.Handle.ID,
		"workspace_name", p.Handle.Name,
		"created", p.Created,
	)

	principal := fabric.Principal{ID: a.cfg.Role.PrincipalID, Type: a.cfg.Role.PrincipalType}
	if err := prov.AssignRole(ctx, p.Handle, principal, a.cfg.Role.Role); err != nil {
		return domain.WorkspaceHandle{}, err
	}
	return p.Handle, nil
}

// action builds the per-item deployment action chain.
func (a *App) action(client *fabric.Client, pkgFS afero.Fs, logger *slog.Logger) deployer.Action {
	if a.cfg.Deploy.DryRun {
		return deployer.NewDryRun(logger)
	}
	dispatcher := deployer.NewDefaultDispatcher(
		deployer.NewRemoteCopyAction(client, a.cfg.Deploy.NameSuffix, logger),
		deployer.NewLocalPackageAction(client, pkgFS, logger),
		logger,
	)
	return deployer.NewPaced(dispatcher, a.cfg.Deploy.ItemInterval)
}

// abort records a run that stopped in a pre-flight stage and returns err
// with the stage and exit code attached. History failures are only logged.
func (a *App) abort(ctx context.Context, history store.Store, run *store.Run, err error) error {
	a.logger.Error("deployment aborted", "run_id", run.ID, "error", err)
	if history != nil {
		run.Abort(err, a.now())
		if ferr := recordAbort(ctx, history, run); ferr != nil {
			a.logger.Warn("failed to record aborted run", "run_id", run.ID, "error", ferr)
		}
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr
	}
	return stageError("Deploy", err)
}

// recordAbort finishes the run row, inserting it first when the run aborted
// before it was recorded. Both writes share one transaction.
func recordAbort(ctx context.Context, history store.Store, run *store.Run) error {
	return history.WithTx(ctx, func(tx store.Store) error {
		err := tx.FinishRun(ctx, run)
		if errors.Is(err, store.ErrNotFound) {
			return tx.CreateRun(ctx, run)
		}
		return err
	})
}

func progressObserver(logger *slog.Logger) orchestrator.Observer {
	return orchestrator.ObserverFunc(func(index, total int, outcome domain.DeploymentOutcome) {
		logger.Info("item processed",
			"progress", fmt.Sprintf("%d/%d", index, total),
			"item", outcome.Item().String(),
			"status", outcome.Status(),
		)
	})
}

func targetLabel(h domain.WorkspaceHandle) string {
	switch {
	case h.Name != "" && h.ID != "":
		return fmt.Sprintf("%s (%s)", h.Name, h.ID)
	case h.Name != "":
		return h.Name
	default:
		return h.ID
	}
}

// =============================================================================
// Items
// =============================================================================

// Items enumerates the configured source and prints what a deploy would do.
func (a *App) Items(ctx context.Context) error {
	if err := a.cfg.ValidateSource(); err != nil {
		return &RunError{Op: "Validate", Err: err, ExitCode: ExitConfigError}
	}
	filter, _ := classify.ParseTypeFilter(a.cfg.Deploy.Types)

	var client *fabric.Client
	if a.cfg.Source.Mode == SourceRemote {
		var err error
		if client, err = a.client(); err != nil {
			return err
		}
	}
	src, _, cleanup := a.itemSource(client)
	defer cleanup()

	items, err := src.Enumerate(ctx)
	if err != nil {
		return stageError("Enumerate", err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tACTION\tORIGIN")
	for _, item := range items {
		action := "deploy"
		if !filter.Allows(item.Type) {
			action = "skip"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", item.Name, item.Type, action, item.Origin)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	warnings := source.Warnings(src)
	for _, w := range warnings {
		fmt.Fprintf(a.out, "ignored: %s\n", w)
	}
	fmt.Fprintf(a.out, "%d items from %s (%s)\n", len(items), src.Describe(), filter)
	return nil
}

// =============================================================================
// History
// =============================================================================

// History lists recent runs, or the outcomes of one run when runID is set.
func (a *App) History(ctx context.Context, runID string, opts store.ListOptions) error {
	if a.cfg.History.DSN == "" {
		return &RunError{Op: "History", Err: errors.New("history.dsn is not configured"), ExitCode: ExitConfigError}
	}
	history, err := a.openStore()
	if err != nil {
		return err
	}
	defer history.Close()

	if runID != "" {
		return a.showRun(ctx, history, runID)
	}

	runs, err := history.ListRuns(ctx, opts)
	if err != nil {
		return &RunError{Op: "ListRuns", Err: err, ExitCode: ExitHistoryError}
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No runs recorded")
		return nil
	}

	now := a.now()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tSOURCE\tTARGET\tOK\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, humanize.RelTime(r.StartedAt, now, "ago", "from now"), r.Status,
			r.Source, runTarget(r), r.Succeeded, r.Failed, r.Skipped)
	}
	return tw.Flush()
}

func (a *App) showRun(ctx context.Context, history store.Store, runID string) error {
	run, err := history.GetRun(ctx, runID)
	if err != nil {
		return &RunError{Op: "GetRun", Err: err, ExitCode: ExitHistoryError}
	}
	outcomes, err := history.ListOutcomes(ctx, runID)
	if err != nil {
		return &RunError{Op: "ListOutcomes", Err: err, ExitCode: ExitHistoryError}
	}

	fmt.Fprintf(a.out, "Run:      %s\n", run.ID)
	fmt.Fprintf(a.out, "Status:   %s\n", run.Status)
	fmt.Fprintf(a.out, "Source:   %s\n", run.Source)
	fmt.Fprintf(a.out, "Target:   %s\n", runTarget(*run))
	fmt.Fprintf(a.out, "Started:  %s (%s)\n", run.StartedAt.Format(time.RFC3339), humanize.RelTime(run.StartedAt, a.now(), "ago", "from now"))
	if run.FinishedAt != nil {
		fmt.Fprintf(a.out, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(a.out, "Error:    [%s] %s\n", run.Stage, run.Error)
	}
	fmt.Fprintf(a.out, "Items:    %s total, %d ok, %d failed, %d skipped\n",
		humanize.Comma(int64(run.Total)), run.Succeeded, run.Failed, run.Skipped)

	if len(outcomes) == 0 {
		return nil
	}
	fmt.Fprintln(a.out)
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tTYPE\tSTATUS\tDETAIL")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", o.Seq, o.ItemName, o.ItemType, o.Status, o.Detail)
	}
	return tw.Flush()
}

func runTarget(r store.Run) string {
	return targetLabel(domain.WorkspaceHandle{ID: r.TargetID, Name: r.TargetName})
}
