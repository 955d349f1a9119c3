// cmd/treecommit/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"treecommit/internal/app"
	"treecommit/internal/commit"
	"treecommit/internal/config"
	"treecommit/internal/errors"
	"treecommit/internal/journal"
	"treecommit/internal/logging"
	"treecommit/internal/storage"
	"treecommit/internal/workspace"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	logLevel      string
	workspaceRoot string
	repository    string
	reference     string
)

var rootCmd = &cobra.Command{
	Use:   "treecommit",
	Short: "Commit a working tree onto a git reference",
	Long: `treecommit selects files from a working tree with glob patterns, maps them
into a destination layout and publishes them as a single commit on top of a
reference. Files whose content already matches the base tree are skipped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "Config file (JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&workspaceRoot, "workspace", "w", "", "Working tree root (default: enclosing git work tree)")
	rootCmd.PersistentFlags().StringVar(&repository, "repo", "", "Repository to commit into (default: the workspace)")
	rootCmd.PersistentFlags().StringVarP(&reference, "ref", "r", "HEAD", "Reference to commit onto")

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Build and publish one commit from the working tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			opts := commit.Options{}
			opts.Message, _ = flags.GetString("message")
			opts.Include, _ = flags.GetStringArray("include")
			opts.Exclude, _ = flags.GetStringArray("exclude")
			opts.Source, _ = flags.GetString("source")
			opts.Target, _ = flags.GetString("target")
			opts.Flatten, _ = flags.GetBool("flatten")
			opts.Force, _ = flags.GetBool("force")
			opts.Always, _ = flags.GetBool("always")
			opts.DryRun, _ = flags.GetBool("dry-run")

			a, err := initApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := a.Engine().Execute(ctx, opts)
			if result != nil {
				printResult(result)
			}
			return err
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "Commit message")
	commitCmd.Flags().StringArrayP("include", "i", nil, "Glob of files to include (repeatable)")
	commitCmd.Flags().StringArrayP("exclude", "x", nil, "Glob of files to exclude (repeatable)")
	commitCmd.Flags().String("source", "", "Directory inside the workspace to take files from")
	commitCmd.Flags().String("target", "", "Directory in the tree to place files under")
	commitCmd.Flags().Bool("flatten", false, "Drop directories, keeping only file names")
	commitCmd.Flags().Bool("force", false, "Move the reference even if it is not a fast-forward")
	commitCmd.Flags().Bool("always", false, "Commit even when nothing changed")
	commitCmd.Flags().Bool("dry-run", false, "Compute the commit without writing anything")

	var hashCmd = &cobra.Command{
		Use:   "hash [paths...]",
		Short: "Print the blob id of files",
		Long:  `Prints the git blob id each file would be stored under. Paths are relative to the workspace root.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveWorkspace()
			if err != nil {
				return err
			}
			ws, err := workspace.Open(root, logging.NewNop())
			if err != nil {
				return err
			}
			scope, release, err := ws.Enter("")
			if err != nil {
				return err
			}
			defer release()

			for _, p := range args {
				id, err := scope.Hash(p)
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s\n", id, p)
			}
			return nil
		},
	}

	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orphans, _ := cmd.Flags().GetBool("orphans")
			onlyIDs, _ := cmd.Flags().GetBool("ids")

			j, err := openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			if onlyIDs {
				ids, err := j.IDs()
				if err != nil {
					return fmt.Errorf("listing run ids: %w", err)
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			}

			if orphans {
				ids, err := j.Orphans()
				if err != nil {
					return fmt.Errorf("listing orphans: %w", err)
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			}

			runs, err := j.List()
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded")
				return nil
			}
			for _, r := range runs {
				printRun(r)
			}
			return nil
		},
	}
	historyCmd.Flags().Bool("orphans", false, "Print blobs created by runs that did not commit them")
	historyCmd.Flags().Bool("ids", false, "Print run ids only")

	var showCmd = &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			r, err := j.Get(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			printRun(r)
			for _, e := range r.Entries {
				fmt.Printf("\t%s %s -> %s\n", e.Mode, e.Source, e.Destination)
			}
			for _, d := range r.Degraded {
				fmt.Printf("\t%s %s\n", color.YellowString("degraded"), d)
			}
			return nil
		},
	}

	historyCmd.AddCommand(showCmd)
	rootCmd.AddCommand(commitCmd, hashCmd, historyCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

func resolveWorkspace() (string, error) {
	if workspaceRoot != "" {
		return workspaceRoot, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if root, err := workspace.FindRoot(cwd); err == nil {
		return root, nil
	}
	return cwd, nil
}

func initApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	root, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger, app.Params{
		Workspace:  root,
		Repository: repository,
		Ref:        reference,
	})
}

func openJournal() (*journal.Journal, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Path == "" {
		return nil, errors.MissingConfiguration("journal.path")
	}
	opts := storage.DefaultCompressionOptions()
	opts.MinSize = cfg.Journal.MinSize
	return journal.Open(cfg.Journal.Path, opts, logging.NewNop())
}

func printResult(r *commit.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	for _, c := range r.Changes {
		fmt.Printf("\t%s %s -> %s\n", green(c.Entry.Mode.String()), c.Source, c.Entry.Path)
	}
	for _, p := range r.Ignored {
		fmt.Printf("\t%s %s\n", blue("ignored"), p)
	}
	if r.Scan != nil {
		for _, f := range r.Scan.Failed {
			fmt.Printf("\t%s %s\n", yellow("degraded"), f.Path)
		}
	}

	switch {
	case r.Committed:
		fmt.Printf("Committed %s (%d files, %d unchanged)\n", green(r.CommitID.Short()), len(r.Changes), len(r.Unchanged))
	case r.DryRun && len(r.Changes) > 0:
		fmt.Printf("Dry run: would commit %d files onto %s\n", len(r.Changes), r.CommitID.Short())
	case !r.CommitID.IsZero():
		fmt.Printf("Nothing to commit, %s is up to date\n", r.CommitID.Short())
	}
	if len(r.Orphans) > 0 {
		fmt.Printf("%s %d blobs were created but not committed\n", yellow("warning:"), len(r.Orphans))
	}
}

func printRun(r *journal.Run) {
	status := string(r.Status)
	switch r.Status {
	case journal.StatusCommitted:
		status = color.GreenString(status)
	case journal.StatusFailed:
		status = color.RedString(status)
	default:
		status = color.YellowString(status)
	}

	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Printf("%s  %s  %-9s  %s  %s\n",
		id,
		r.StartedAt.Format(time.RFC3339),
		status,
		r.Ref,
		r.Message,
	)
	if r.Error != "" {
		fmt.Printf("\t%s %s\n", color.RedString(r.ErrorType), r.Error)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(errors.ExitCode(err))
	}
}
