package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chriserin/featsync/internal/config"
	"github.com/chriserin/featsync/internal/db"
	"github.com/spf13/cobra"
)

const (
	stateDir           = ".featsync"
	defaultJournalPath = stateDir + "/journal.db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create featsync.yaml and the run journal in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunInit(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func RunInit(w io.Writer) error {
	// config
	if _, err := os.Stat(config.ProjectConfigFile); err == nil {
		fmt.Fprintf(w, "%s already exists\n", config.ProjectConfigFile)
	} else {
		cfg := config.DefaultConfig()
		cfg.JournalPath = defaultJournalPath
		if err := cfg.SaveToFile(config.ProjectConfigFile); err != nil {
			return fmt.Errorf("writing %s: %w", config.ProjectConfigFile, err)
		}
		fmt.Fprintf(w, "%s created\n", config.ProjectConfigFile)
	}

	// journal
	_, err := os.Stat(defaultJournalPath)
	journalExists := err == nil
	sqlDB, err := db.Open(filepath.FromSlash(defaultJournalPath))
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	sqlDB.Close()
	if journalExists {
		fmt.Fprintf(w, "%s already exists\n", defaultJournalPath)
	} else {
		fmt.Fprintf(w, "%s created\n", defaultJournalPath)
	}

	// gitignore
	msgs, err := ensureGitignore()
	if err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	for _, msg := range msgs {
		fmt.Fprintln(w, msg)
	}

	return nil
}

func ensureGitignore() ([]string, error) {
	const entry = stateDir + "/"

	data, err := os.ReadFile(".gitignore")
	if os.IsNotExist(err) {
		if err := os.WriteFile(".gitignore", []byte(entry+"\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{".gitignore created", entry + " added to .gitignore"}, nil
	}
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		switch strings.TrimSpace(line) {
		case entry, stateDir:
			return []string{entry + " already in .gitignore"}, nil
		}
	}

	content := string(data)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"

	if err := os.WriteFile(".gitignore", []byte(content), 0o644); err != nil {
		return nil, err
	}
	return []string{entry + " added to .gitignore"}, nil
}
