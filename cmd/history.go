package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chriserin/featsync/internal/db"
	"github.com/spf13/cobra"
)

var (
	historyLimitFlag   int
	historyJournalFlag string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent push and pull runs from the journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyJournalFlag
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = cfg.JournalPath
		}
		return RunHistory(cmd.OutOrStdout(), path, historyLimitFlag)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&historyJournalFlag, "journal", "", "Journal database path")
	rootCmd.AddCommand(historyCmd)
}

func RunHistory(w io.Writer, path string, limit int) error {
	if path == "" {
		return fmt.Errorf("no journal configured; run `featsync init` or set TESTOMATIO_JOURNAL")
	}

	sqlDB, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer sqlDB.Close()

	runs, err := db.RecentRuns(sqlDB, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-5s  %d tests  %s  %s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Command, r.Tests, r.Outcome, r.ID[:min(8, len(r.ID))])
		for _, f := range r.Files {
			fmt.Fprintf(w, "  %-9s %s\n", f.Action, f.Path)
		}
	}
	return nil
}

// recordRun journals run when path is set. Journal failures are logged and
// never fail the command that produced the run.
func recordRun(path string, run db.Run) {
	if path == "" {
		return
	}
	sqlDB, err := db.Open(path)
	if err != nil {
		slog.Warn("opening journal", "path", path, "err", err)
		return
	}
	defer sqlDB.Close()

	id, err := db.RecordRun(sqlDB, run)
	if err != nil {
		slog.Warn("recording run", "path", path, "err", err)
		return
	}
	slog.Debug("run recorded", "id", id, "command", run.Command)
}
