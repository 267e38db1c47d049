// Command git-black rewrites an unstaged working-copy reformat into a
// sequence of small, attributed commits so that `git blame` survives a
// sweeping cosmetic change.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/AlayaCare/git-black/cliexit"
	"github.com/AlayaCare/git-black/config"
	"github.com/AlayaCare/git-black/gitrepo"
	"github.com/AlayaCare/git-black/orchestrator"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	flagWorkers int
	flagDryRun  bool
	flagConfig  string
	flagVerbose bool
	flagNoColor bool
)

func main() {
	root := &cobra.Command{
		Use:   "git-black",
		Short: "Split an unstaged reformat into blame-preserving commits",
		Long: `git-black replays the unstaged changes in the current working
copy as a sequence of small commits, each attributed to the original
commit(s) that introduced the lines it touches, so that a sweeping
cosmetic reformat does not destroy line-level blame history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().IntVar(&flagWorkers, "workers", 0, "bound phase-1 blame/diff concurrency (0 = default)")
	root.Flags().BoolVar(&flagDryRun, "dry-run", false, "report what would be committed without writing any objects")
	root.Flags().StringVar(&flagConfig, "config", "", "path to a .git-black.toml file (default: <repo>/.git-black.toml)")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.Flags().BoolVar(&flagNoColor, "no-color", false, "disable colored error output")

	if err := root.Execute(); err != nil {
		cliexit.Fatal(err, flagNoColor)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	repo, err := gitrepo.Open(wd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(repo.Root(), flagConfig)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	workers := flagWorkers
	if workers == 0 {
		workers = cfg.Core.Workers
	}

	bar := newProgressBar(flagVerbose)

	var committer object.Signature
	if cfg.Author.Name != "" || cfg.Author.Email != "" {
		committer = object.Signature{Name: cfg.Author.Name, Email: cfg.Author.Email}
	}

	result, err := orchestrator.Run(cmd.Context(), repo, orchestrator.Options{
		Workers:          workers,
		DryRun:           flagDryRun,
		Committer:        committer,
		OnGroupCommitted: onGroupCommitted(bar),
	})
	if err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
	}

	logger.Info("git-black finished",
		slog.Int("commits_created", result.CommitsCreated),
		slog.Int("files_touched", result.FilesTouched),
		slog.Bool("dry_run", flagDryRun),
	)

	return nil
}

func onGroupCommitted(bar *progressbar.ProgressBar) func(index, total int, commit plumbing.Hash, files int, origins []string) {
	return func(index, total int, commit plumbing.Hash, files int, origins []string) {
		if bar != nil {
			bar.ChangeMax(total)
			_ = bar.Add(1)
		}
		slog.Debug("committed group",
			slog.Int("index", index),
			slog.Int("total", total),
			slog.String("commit", commit.String()),
			slog.Int("files", files),
			slog.Int("origins", len(origins)),
		)
	}
}

func newProgressBar(verbose bool) *progressbar.ProgressBar {
	if verbose || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("committing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(65*time.Millisecond),
	)
}
