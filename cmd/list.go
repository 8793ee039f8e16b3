package cmd

import (
	"fmt"
	"io"

	"github.com/chriserin/featsync/internal/parser"
	"github.com/chriserin/featsync/internal/tags"
	"github.com/chriserin/featsync/internal/ui"
	"github.com/spf13/cobra"
)

var (
	listDirFlag     string
	listExcludeFlag []string
	missingFlag     bool
)

var listCmd = &cobra.Command{
	Use:   "list [glob]",
	Short: "List scenarios with their test ids",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) > 0 {
			pattern = args[0]
		}
		return RunList(cmd.OutOrStdout(), listDirFlag, pattern, listExcludeFlag, missingFlag)
	},
}

func init() {
	listCmd.Flags().StringVarP(&listDirFlag, "dir", "d", ".", "Directory to search for feature files")
	listCmd.Flags().StringArrayVar(&listExcludeFlag, "exclude", nil, "Glob of files to skip (repeatable)")
	listCmd.Flags().BoolVar(&missingFlag, "missing", false, "Show only scenarios without a test id")
	rootCmd.AddCommand(listCmd)
}

type listRow struct {
	id    string
	file  string
	title string
}

func RunList(w io.Writer, dir, pattern string, exclude []string, missing bool) error {
	features, err := parser.Analyze(pattern, dir, parser.Options{Exclude: exclude})
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", dir, err)
	}

	var results []listRow
	for _, f := range features {
		if f.HasError() {
			ui.ErrLine(w, f.Error)
			continue
		}
		for _, s := range f.Scenarios {
			id, _ := nodeID(s.Tags, s.Name, tags.KindTest)
			if missing && id != "" {
				continue
			}
			results = append(results, listRow{id: id, file: f.File, title: tags.StripTitle(s.Name)})
		}
	}

	if len(results) == 0 {
		return nil
	}

	idWidth, fileWidth := 1, 0
	for _, r := range results {
		idWidth = max(idWidth, len(r.id))
		fileWidth = max(fileWidth, len(r.file))
	}

	for _, r := range results {
		ui.ListRow(w, r.id, r.file, r.title, idWidth, fileWidth)
	}
	return nil
}

// nodeID finds an identifier of kind k among a node's tags or, failing that,
// embedded in its name.
func nodeID(tagNames []string, name string, k tags.Kind) (string, bool) {
	if id, ok := tags.FindID(tagNames, k); ok {
		return id, true
	}
	return tags.FindID(tags.Tokens(name), k)
}
