package annotate

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chriserin/featsync/internal/parser"
	"github.com/chriserin/featsync/internal/tags"
)

// Options controls how identifiers are written.
type Options struct {
	// TitleIDs appends identifiers to the Feature:/Scenario: line instead of
	// writing them on a tag line.
	TitleIDs bool
	// FileKey maps a feature's path to the path used in compound map keys.
	FileKey func(file string) string
	Logger  *slog.Logger
}

func (o Options) fileKey(file string) string {
	if o.FileKey != nil {
		return o.FileKey(file)
	}
	return file
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Conflict is a node left untouched because it already carries a different
// identifier of the same kind.
type Conflict struct {
	File     string
	Line     int
	Title    string
	Existing string
	Wanted   string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s:%d %q has %s, remote has %s", c.File, c.Line, c.Title, c.Existing, c.Wanted)
}

// WriteResult reports what Write changed.
type WriteResult struct {
	Files     []string // workDir-joined paths of files rewritten
	Suites    int      // suite identifiers written
	Tests     int      // test identifiers written
	Conflicts []Conflict
}

// Write annotates features with identifiers from ids. Files are processed
// one at a time; each is read once, edited in memory and written once if
// anything changed.
func Write(features []parser.ParsedFeature, ids IdentifierMap, workDir string, opts Options) (*WriteResult, error) {
	res := &WriteResult{}
	for _, group := range groupByFile(features) {
		doc, err := loadDocument(filepath.Join(workDir, filepath.FromSlash(group.file)))
		if err != nil {
			return res, err
		}

		offset := 0
		for _, f := range group.features {
			offset, err = writeFeature(doc, f, ids, offset, opts, res)
			if err != nil {
				return res, err
			}
		}

		if !doc.changed() {
			continue
		}
		if err := doc.save(); err != nil {
			return res, err
		}
		opts.logger().Debug("annotated feature file", "file", doc.path)
		res.Files = append(res.Files, doc.path)
	}
	return res, nil
}

// writeFeature applies the suite and test identifiers of one feature and
// returns the file's line offset after its edits.
func writeFeature(doc *document, f parser.ParsedFeature, ids IdentifierMap, offset int, opts Options, res *WriteResult) (int, error) {
	if f.HasError() || len(f.Scenarios) == 0 {
		return offset, nil
	}

	if id, ok := ids.SuiteID(opts.fileKey(f.File), f.Title); ok {
		n := node{
			kind:        tags.KindSuite,
			title:       f.Title,
			name:        f.Name,
			file:        f.File,
			tags:        f.Tags,
			keywordLine: f.KeywordLine,
			tagLine:     f.TagLine,
		}
		var err error
		if offset, err = n.apply(doc, id, offset, opts, res); err != nil {
			return offset, err
		}
	}

	for _, sc := range f.Scenarios {
		id, ok := ids.TestID(opts.fileKey(sc.File), f.Title, sc.Title)
		if !ok {
			continue
		}
		n := node{
			kind:        tags.KindTest,
			title:       sc.Title,
			name:        sc.Name,
			file:        sc.File,
			tags:        sc.Tags,
			keywordLine: sc.KeywordLine,
			tagLine:     sc.TagLine,
			indent:      bodyIndent(sc.Body),
		}
		var err error
		if offset, err = n.apply(doc, id, offset, opts, res); err != nil {
			return offset, err
		}
	}
	return offset, nil
}

// node is the part of a feature or scenario the writer needs.
type node struct {
	kind        tags.Kind
	title       string
	name        string
	file        string
	tags        []string
	keywordLine int
	tagLine     int
	indent      string
}

func (n node) apply(doc *document, id string, offset int, opts Options, res *WriteResult) (int, error) {
	if n.has(id) {
		return offset, nil
	}
	if existing, ok := n.existingID(); ok {
		res.Conflicts = append(res.Conflicts, Conflict{
			File:     n.file,
			Line:     n.keywordLine + offset,
			Title:    n.title,
			Existing: existing,
			Wanted:   id,
		})
		return offset, nil
	}

	switch {
	case opts.TitleIDs:
		line, err := doc.line(n.keywordLine + offset)
		if err != nil {
			return offset, err
		}
		if err := doc.set(n.keywordLine+offset, strings.TrimRight(line, " \t")+" "+id); err != nil {
			return offset, err
		}
	case len(n.tags) > 0:
		at := n.tagLine + offset
		line, err := doc.line(at)
		if err != nil {
			return offset, err
		}
		if !tags.IsTagLine(strings.TrimSpace(line)) {
			return offset, fmt.Errorf("%s:%d: expected tag line above %q, got %q", n.file, at, n.name, strings.TrimSpace(line))
		}
		if err := doc.set(at, appendTag(line, id)); err != nil {
			return offset, err
		}
	default:
		indent := n.indent
		if n.kind == tags.KindSuite {
			line, err := doc.line(n.keywordLine + offset)
			if err != nil {
				return offset, err
			}
			indent = indentOf(line)
		}
		if err := doc.insert(n.keywordLine+offset, indent+id); err != nil {
			return offset, err
		}
		offset++
	}

	if n.kind == tags.KindSuite {
		res.Suites++
	} else {
		res.Tests++
	}
	return offset, nil
}

// has reports whether the node already carries id as a tag or in its name.
func (n node) has(id string) bool {
	for _, t := range n.tags {
		if "@"+strings.TrimPrefix(t, "@") == id {
			return true
		}
	}
	return strings.Contains(n.name, id)
}

// existingID finds an identifier of the node's kind on its tags or in its name.
func (n node) existingID() (string, bool) {
	if id, ok := tags.FindID(n.tags, n.kind); ok {
		return id, true
	}
	return tags.FindID(tags.Tokens(n.name), n.kind)
}

// appendTag rewrites a tag line with id appended last, keeping indentation,
// existing tokens in order and any trailing comment.
func appendTag(line, id string) string {
	indent := indentOf(line)
	body := strings.TrimSpace(line)
	comment := ""
	if i := strings.Index(body, " #"); i >= 0 {
		body, comment = body[:i], body[i:]
	}
	var out []string
	for _, tok := range tags.Tokens(body) {
		if tok != id {
			out = append(out, tok)
		}
	}
	out = append(out, id)
	return indent + strings.Join(out, " ") + comment
}

// bodyIndent is the indentation of the first non-tag line of a scenario body.
func bodyIndent(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || tags.IsTagLine(trimmed) {
			continue
		}
		return indentOf(line)
	}
	return ""
}

type fileGroup struct {
	file     string
	features []parser.ParsedFeature
}

// groupByFile keeps the input order of files and of features within a file.
func groupByFile(features []parser.ParsedFeature) []fileGroup {
	var groups []fileGroup
	index := make(map[string]int)
	for _, f := range features {
		if f.HasError() || f.File == "" {
			continue
		}
		i, ok := index[f.File]
		if !ok {
			i = len(groups)
			index[f.File] = i
			groups = append(groups, fileGroup{file: f.File})
		}
		groups[i].features = append(groups[i].features, f)
	}
	return groups
}
