package annotate

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/natefinch/atomic"
)

// document is a feature file held as lines. Line numbers are 1-based and
// agree with the parser's: \r\n, \r and \n all end a line, and each line
// keeps its own terminator so untouched lines are written back unchanged.
type document struct {
	path     string
	original string
	lines    []string
	eols     []string // terminator of each line, "" for an unterminated last line
	eol      string   // first terminator in the file, used for lines that have none
	mode     os.FileMode
}

func loadDocument(path string) (*document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return newDocument(path, string(content), info.Mode().Perm()), nil
}

func newDocument(path, content string, mode os.FileMode) *document {
	d := &document{path: path, original: content, mode: mode}
	for rest := content; rest != ""; {
		i := strings.IndexAny(rest, "\r\n")
		if i < 0 {
			d.lines = append(d.lines, rest)
			d.eols = append(d.eols, "")
			break
		}
		eol := rest[i : i+1]
		if rest[i] == '\r' && strings.HasPrefix(rest[i+1:], "\n") {
			eol = "\r\n"
		}
		if d.eol == "" {
			d.eol = eol
		}
		d.lines = append(d.lines, rest[:i])
		d.eols = append(d.eols, eol)
		rest = rest[i+len(eol):]
	}
	if d.eol == "" {
		d.eol = "\n"
	}
	return d
}

func (d *document) valid(n int) bool {
	return n >= 1 && n <= len(d.lines)
}

func (d *document) line(n int) (string, error) {
	if !d.valid(n) {
		return "", fmt.Errorf("%s: line %d out of range", d.path, n)
	}
	return d.lines[n-1], nil
}

func (d *document) set(n int, text string) error {
	if !d.valid(n) {
		return fmt.Errorf("%s: line %d out of range", d.path, n)
	}
	d.lines[n-1] = text
	return nil
}

// insert places text at line n, shifting line n and everything after it down.
// The new line takes the terminator of the line it displaces.
func (d *document) insert(n int, text string) error {
	if n < 1 || n > len(d.lines)+1 {
		return fmt.Errorf("%s: line %d out of range", d.path, n)
	}
	eol := d.eol
	switch {
	case n <= len(d.lines):
		if d.eols[n-1] != "" {
			eol = d.eols[n-1]
		}
	case n > 1:
		eol = d.eols[n-2]
		if eol == "" {
			d.eols[n-2] = d.eol
		}
	}
	d.lines = slices.Insert(d.lines, n-1, text)
	d.eols = slices.Insert(d.eols, n-1, eol)
	return nil
}

// keep reduces the document to the lines at the given 0-based indices, in
// order. An unterminated last line stays unterminated.
func (d *document) keep(indices []int) {
	if len(d.lines) == 0 {
		return
	}
	unterminated := d.eols[len(d.eols)-1] == ""
	lines := make([]string, 0, len(indices))
	eols := make([]string, 0, len(indices))
	for _, i := range indices {
		lines = append(lines, d.lines[i])
		eols = append(eols, d.eols[i])
	}
	if unterminated && len(eols) > 0 {
		eols[len(eols)-1] = ""
	}
	d.lines, d.eols = lines, eols
}

func (d *document) String() string {
	var b strings.Builder
	for i, line := range d.lines {
		b.WriteString(line)
		b.WriteString(d.eols[i])
	}
	return b.String()
}

func (d *document) changed() bool {
	return d.String() != d.original
}

// save writes the document back in one atomic replace, keeping the file mode.
func (d *document) save() error {
	if err := atomic.WriteFile(d.path, strings.NewReader(d.String())); err != nil {
		return fmt.Errorf("writing %s: %w", d.path, err)
	}
	if err := os.Chmod(d.path, d.mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", d.path, err)
	}
	return nil
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
