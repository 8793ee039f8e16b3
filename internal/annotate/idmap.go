// Package annotate writes, removes and audits @S/@T identifier tags in
// feature files. Edits are applied to an in-memory copy of each file and
// written back once per file.
package annotate

import (
	"sort"

	"github.com/chriserin/featsync/internal/tags"
)

// IdentifierMap maps suite and test titles to the identifiers issued by the
// remote service. Keys are bare titles or compound keys: "file#title" for
// suites, "file#suite#title" or "suite#title" for tests.
type IdentifierMap struct {
	Suites map[string]string `json:"suites"`
	Tests  map[string]string `json:"tests"`
}

// SuiteID returns the identifier for a feature, preferring the
// file-qualified key. Tags are stripped from title before lookup.
func (m IdentifierMap) SuiteID(file, title string) (string, bool) {
	title = tags.StripTitle(title)
	return lookup(m.Suites, file+"#"+title, title)
}

// TestID returns the identifier for a scenario. Lookup order is
// file#suite#title, suite#title, title.
func (m IdentifierMap) TestID(file, suite, title string) (string, bool) {
	title = tags.StripTitle(title)
	suite = tags.StripTitle(suite)
	return lookup(m.Tests, file+"#"+suite+"#"+title, suite+"#"+title, title)
}

// Values returns every distinct identifier in the map, suites first, each
// group sorted.
func (m IdentifierMap) Values() []string {
	seen := make(map[string]bool)
	var out []string
	for _, group := range []map[string]string{m.Suites, m.Tests} {
		var vals []string
		for _, v := range group {
			v = normalize(v)
			if v == "@" || seen[v] {
				continue
			}
			seen[v] = true
			vals = append(vals, v)
		}
		sort.Strings(vals)
		out = append(out, vals...)
	}
	return out
}

// Len is the total number of entries in the map.
func (m IdentifierMap) Len() int {
	return len(m.Suites) + len(m.Tests)
}

func lookup(entries map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := entries[k]; ok && v != "" {
			return normalize(v), true
		}
	}
	return "", false
}

// normalize makes sure an identifier carries its leading "@".
func normalize(id string) string {
	return tags.ClassifyTag(id).Value
}
