package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/chriserin/featsync/internal/config"
	"github.com/chriserin/featsync/internal/db"
	"github.com/chriserin/featsync/internal/materialize"
	"github.com/chriserin/featsync/internal/remote"
	"github.com/chriserin/featsync/internal/ui"
	"github.com/spf13/cobra"
)

// PullOptions are the flags of pull.
type PullOptions struct {
	Dir     string
	DryRun  bool
	Branch  string
	Journal string
}

var pullFlags PullOptions

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download feature files from the remote service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return RunPull(cmd.Context(), cmd.OutOrStdout(), cfg, pullFlags)
	},
}

func init() {
	pullCmd.Flags().StringVarP(&pullFlags.Dir, "dir", "d", ".", "Directory to write feature files into")
	pullCmd.Flags().BoolVar(&pullFlags.DryRun, "dry-run", false, "Show which files would be written without writing them")
	pullCmd.Flags().StringVar(&pullFlags.Branch, "branch", "", "Branch to pull from (overrides TESTOMATIO_BRANCH)")
	pullCmd.Flags().StringVar(&pullFlags.Journal, "journal", "", "Record this run in the sqlite journal at path")
	rootCmd.AddCommand(pullCmd)
}

// RunPull fetches the registered feature files and writes them below opts.Dir.
func RunPull(ctx context.Context, w io.Writer, cfg *config.Config, opts PullOptions) error {
	if !cfg.HasAPIKey() {
		return config.ErrNoAPIKey
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Branch == "" {
		opts.Branch = cfg.Branch
	}
	if opts.Journal == "" {
		opts.Journal = cfg.JournalPath
	}

	res, err := newClient(cfg, false).Pull(ctx, remote.SyncOptions{Branch: opts.Branch})
	if err != nil {
		return fmt.Errorf("pulling files: %w", err)
	}
	if len(res.Files) == 0 {
		ui.Warning(w, "no files found on server")
		return nil
	}

	written, err := materialize.Materialize(res.Files, opts.Dir, opts.DryRun)
	for _, p := range written {
		if opts.DryRun {
			ui.DryLine(w, filepath.Join(opts.Dir, p))
		} else {
			ui.NewLine(w, filepath.Join(opts.Dir, p))
		}
	}
	if err != nil {
		return err
	}

	if opts.DryRun {
		ui.SummaryLine(w, "dry run: %d files would be written", len(written))
	} else {
		ui.SummaryLine(w, "pulled %d files", len(written))
	}
	ui.FileTree(w, written)

	if !opts.DryRun {
		run := db.Run{Command: "pull", Outcome: "ok"}
		for _, p := range written {
			run.Files = append(run.Files, db.RunFile{Path: filepath.Join(opts.Dir, p), Action: db.ActionPulled})
		}
		recordRun(opts.Journal, run)
	}
	return nil
}
