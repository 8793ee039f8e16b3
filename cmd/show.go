package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chriserin/featsync/internal/parser"
	"github.com/chriserin/featsync/internal/tags"
	"github.com/chriserin/featsync/internal/ui"
	"github.com/spf13/cobra"
)

var showDirFlag string

var showCmd = &cobra.Command{
	Use:   "show <@S or @T id>",
	Short: "Show the feature or scenario carrying an id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunShow(cmd.OutOrStdout(), showDirFlag, args[0])
	},
}

func init() {
	showCmd.Flags().StringVarP(&showDirFlag, "dir", "d", ".", "Directory to search for feature files")
	rootCmd.AddCommand(showCmd)
}

func RunShow(w io.Writer, dir, rawID string) error {
	tag := tags.ClassifyTag(rawID)
	if tag.Kind == tags.KindPlain {
		return fmt.Errorf("invalid id: %s", rawID)
	}

	features, err := parser.Analyze("", dir, parser.Options{IncludeBackgroundCode: true})
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", dir, err)
	}

	for _, f := range features {
		if f.HasError() {
			continue
		}
		if tag.Kind == tags.KindSuite {
			if id, ok := nodeID(f.Tags, f.Name, tags.KindSuite); ok && id == tag.Value {
				return showFeature(w, dir, f, id)
			}
			continue
		}
		for _, s := range f.Scenarios {
			if id, ok := nodeID(s.Tags, s.Name, tags.KindTest); ok && id == tag.Value {
				ui.ShowHeader(w, id, s.File, s.KeywordLine)
				fmt.Fprintln(w)
				ui.ShowGherkin(w, s.Code)
				return nil
			}
		}
	}

	return fmt.Errorf("%s not found in %s", tag.Value, dir)
}

func showFeature(w io.Writer, dir string, f parser.ParsedFeature, id string) error {
	content, err := os.ReadFile(filepath.Join(dir, f.File))
	if err != nil {
		return fmt.Errorf("reading %s: %w", f.File, err)
	}
	ui.ShowHeader(w, id, f.File, f.KeywordLine)
	fmt.Fprintln(w)
	ui.ShowGherkin(w, string(content))
	return nil
}
