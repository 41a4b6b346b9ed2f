package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/promoter/internal/shell/store"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	noColor    bool

	cfg *Config
}

// NewRootCmd builds the promoter command tree. Human output goes to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "promoter",
		Short: "Promote workspace items into a target workspace",
		Long: `Promote reports, semantic models, dataflows, lakehouses, notebooks and
pipelines from a development workspace, a local Development folder or a git
branch into a target workspace, creating the workspace when needed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			if err := LoadDotEnv(opts.envFile); err != nil {
				return &RunError{Op: "LoadDotEnv", Err: err, ExitCode: ExitConfigError}
			}
			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return &RunError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before configuration")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newDeployCmd(opts))
	root.AddCommand(newItemsCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

func (o *rootOptions) app(cmd *cobra.Command) *App {
	app := NewApp(o.cfg, SetupLogger(o.cfg), cmd.OutOrStdout())
	app.noColor = o.noColor
	return app
}

// sourceFlags are the flags that override source and filter settings.
type sourceFlags struct {
	mode   string
	source string
	branch string
	types  []string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "source-mode", "", "Item source: remote, local or git")
	cmd.Flags().StringVar(&f.source, "source", "", "Source workspace id, directory or repository URL, depending on --source-mode")
	cmd.Flags().StringVar(&f.branch, "branch", "", "Branch to clone for git sources")
	cmd.Flags().StringSliceVar(&f.types, "types", nil, "Only deploy these item types (comma separated)")
}

func (f *sourceFlags) apply(cmd *cobra.Command, cfg *Config) {
	if cmd.Flags().Changed("source-mode") {
		cfg.Source.Mode = strings.ToLower(f.mode)
	}
	if cmd.Flags().Changed("source") {
		switch cfg.Source.Mode {
		case SourceLocal:
			cfg.Source.Path = f.source
		case SourceGit:
			cfg.Source.RepoURL = f.source
		default:
			cfg.Source.WorkspaceID = f.source
		}
	}
	if cmd.Flags().Changed("branch") {
		cfg.Source.Branch = f.branch
	}
	if cmd.Flags().Changed("types") {
		cfg.Deploy.Types = f.types
	}
}

// =============================================================================
// deploy
// =============================================================================

func newDeployCmd(opts *rootOptions) *cobra.Command {
	var (
		src        sourceFlags
		targetID   string
		targetName string
		dryRun     bool
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Promote items into the target workspace",
		Long: `Ensure the target workspace exists, then deploy every item of the source
into it, one at a time. A failed item never stops the run.

Examples:
  promoter deploy --source-mode remote --source <dev-workspace-id> --target-name Sales-Prod
  promoter deploy --source-mode local --source ./repo --target-id <prod-workspace-id>
  promoter deploy --source-mode git --source https://github.com/org/repo --types Report,SemanticModel`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			src.apply(cmd, cfg)
			if cmd.Flags().Changed("target-id") {
				cfg.Target.WorkspaceID = targetID
			}
			if cmd.Flags().Changed("target-name") {
				cfg.Target.WorkspaceName = targetName
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.Deploy.DryRun = dryRun
			}
			if cmd.Flags().Changed("report") {
				cfg.Report.Path = reportPath
			}
			return opts.app(cmd).Deploy(cmd.Context())
		},
	}

	src.register(cmd)
	cmd.Flags().StringVar(&targetID, "target-id", "", "Target workspace id")
	cmd.Flags().StringVar(&targetName, "target-name", "", "Target workspace name, created when missing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log what would be deployed without changing anything")
	cmd.Flags().StringVar(&reportPath, "report", "", "Report file path (.json, .yaml); empty disables the report")

	return cmd
}

// =============================================================================
// items
// =============================================================================

func newItemsCmd(opts *rootOptions) *cobra.Command {
	var src sourceFlags

	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"ls"},
		Short:   "List the items the source would deploy",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src.apply(cmd, opts.cfg)
			return opts.app(cmd).Items(cmd.Context())
		},
	}
	src.register(cmd)
	return cmd
}

// =============================================================================
// history
// =============================================================================

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded deployment runs",
		Long: `Without arguments, list the most recent runs. With a run id, show the
outcome of every item in that run. Requires history.dsn.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			list := store.ListOptions{Limit: limit, Status: store.RunStatus(status)}
			return opts.app(cmd).History(cmd.Context(), runID, list)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListOptions().Limit, "Number of runs to list")
	cmd.Flags().StringVar(&status, "status", "", "Only list runs with this status (running, succeeded, failed, aborted)")
	return cmd
}

// =============================================================================
// version
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "promoter %s (built %s)\n", Version, BuildTime)
		},
	}
}
