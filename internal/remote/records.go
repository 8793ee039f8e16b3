package remote

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/chriserin/featsync/internal/parser"
)

// TestRecord is one scenario as sent to the service.
type TestRecord struct {
	Name        string              `json:"name"`
	Suites      []string            `json:"suites"`
	Tags        []string            `json:"tags"`
	Description string              `json:"description"`
	Code        string              `json:"code"`
	File        string              `json:"file"`
	Steps       []parser.ParsedStep `json:"steps"`
	Labels      []string            `json:"labels,omitempty"`
}

// PathOptions rewrites the file paths reported to the service.
type PathOptions struct {
	// WorkDir, when set, replaces the analyzed directory as the base that
	// reported paths are relative to.
	WorkDir string
	// PrependDir is joined in front of every reported path.
	PrependDir string
}

// Report returns the path under which a file below dir is reported.
func (p PathOptions) Report(dir, file string) string {
	out := file
	if p.WorkDir != "" {
		abs, err1 := filepath.Abs(filepath.Join(dir, filepath.FromSlash(file)))
		base, err2 := filepath.Abs(p.WorkDir)
		if err1 == nil && err2 == nil {
			if rel, err := filepath.Rel(base, abs); err == nil {
				out = filepath.ToSlash(rel)
			}
		}
	}
	if p.PrependDir != "" {
		out = path.Join(filepath.ToSlash(p.PrependDir), out)
	}
	return out
}

// BuildTests turns parsed features into push records and collects the
// contents of every file they came from, keyed by reported path. Features
// that failed to parse are left out.
func BuildTests(features []parser.ParsedFeature, dir string, opts PathOptions) ([]TestRecord, map[string]string, error) {
	var tests []TestRecord
	files := make(map[string]string)
	for _, f := range features {
		if f.HasError() {
			continue
		}
		reported := opts.Report(dir, f.File)
		if _, ok := files[reported]; !ok {
			content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f.File)))
			if err != nil {
				return nil, nil, fmt.Errorf("reading %s: %w", f.File, err)
			}
			files[reported] = string(content)
		}

		for _, sc := range f.Scenarios {
			tags := sc.Tags
			if tags == nil {
				tags = []string{}
			}
			steps := sc.Steps
			if steps == nil {
				steps = []parser.ParsedStep{}
			}
			tests = append(tests, TestRecord{
				Name:        sc.Title,
				Suites:      []string{f.Title},
				Tags:        tags,
				Description: sc.Description,
				Code:        sc.Code,
				File:        reported,
				Steps:       steps,
			})
		}
	}
	return tests, files, nil
}
