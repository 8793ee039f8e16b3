package annotate

import (
	"path/filepath"

	"github.com/chriserin/featsync/internal/parser"
	"github.com/chriserin/featsync/internal/tags"
)

// CheckResult lists the suites and tests that carry no identifier.
type CheckResult struct {
	CheckedFiles     []string
	SuitesWithoutIDs []string
	TestsWithoutIDs  []string
}

// Missing is the number of suites and tests without an identifier.
func (r CheckResult) Missing() int {
	return len(r.SuitesWithoutIDs) + len(r.TestsWithoutIDs)
}

// Check reports which features and scenarios lack identifiers. It reads
// nothing from disk.
func Check(features []parser.ParsedFeature, workDir string) CheckResult {
	var res CheckResult
	seen := make(map[string]bool)
	for _, f := range features {
		if f.HasError() || len(f.Scenarios) == 0 {
			continue
		}
		path := filepath.Join(workDir, filepath.FromSlash(f.File))
		if !seen[path] {
			seen[path] = true
			res.CheckedFiles = append(res.CheckedFiles, path)
		}

		if !carries(f.Tags, f.Name, tags.KindSuite) {
			res.SuitesWithoutIDs = append(res.SuitesWithoutIDs, f.Title)
		}
		for _, sc := range f.Scenarios {
			if !carries(sc.Tags, sc.Name, tags.KindTest) {
				res.TestsWithoutIDs = append(res.TestsWithoutIDs, sc.Title)
			}
		}
	}
	return res
}

// carries reports whether an identifier of kind k is among names or,
// for title-embedded identifiers, in the raw name.
func carries(names []string, name string, k tags.Kind) bool {
	if _, ok := tags.FindID(names, k); ok {
		return true
	}
	_, ok := tags.FindID(tags.Tokens(name), k)
	return ok
}
