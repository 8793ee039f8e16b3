package annotate

import (
	"path/filepath"
	"strings"

	"github.com/chriserin/featsync/internal/parser"
	"github.com/chriserin/featsync/internal/tags"
)

// Remove deletes identifier tags from the files of features and returns the
// workDir-joined paths of the files it rewrote.
//
// In safe mode only identifiers present in ids are removed, the first
// occurrence of each. With purge every @S/@T identifier-shaped token goes,
// whether ids knows it or not, and trailing whitespace is stripped from
// every line.
func Remove(features []parser.ParsedFeature, ids IdentifierMap, workDir string, purge bool) ([]string, error) {
	targets := ids.Values()
	if !purge && len(targets) == 0 {
		return nil, nil
	}

	var written []string
	for _, group := range groupByFile(features) {
		doc, err := loadDocument(filepath.Join(workDir, filepath.FromSlash(group.file)))
		if err != nil {
			return written, err
		}

		dropped := make([]bool, len(doc.lines))
		if purge {
			purgeLines(doc.lines, dropped)
		} else {
			for _, id := range targets {
				removeFirst(doc.lines, dropped, id)
			}
		}
		doc.keep(collapse(doc.lines, dropped))

		if !doc.changed() {
			continue
		}
		if err := doc.save(); err != nil {
			return written, err
		}
		written = append(written, doc.path)
	}
	return written, nil
}

// removeFirst deletes the first whole-token occurrence of id.
func removeFirst(lines []string, dropped []bool, id string) {
	for i, line := range lines {
		if dropped[i] {
			continue
		}
		start, end, ok := findToken(line, func(tok string) bool { return tok == id })
		if !ok {
			continue
		}
		lines[i], dropped[i] = cutToken(line, start, end)
		return
	}
}

func purgeLines(lines []string, dropped []bool) {
	isID := func(tok string) bool {
		return strings.HasPrefix(tok, "@") && tags.IsID(tok)
	}
	for i, line := range lines {
		for !dropped[i] {
			start, end, ok := findToken(line, isID)
			if !ok {
				break
			}
			line, dropped[i] = cutToken(line, start, end)
		}
		lines[i] = strings.TrimRight(line, " \t")
	}
}

// findToken returns the byte range of the first whitespace-delimited token
// in line accepted by match.
func findToken(line string, match func(string) bool) (int, int, bool) {
	i := 0
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		if start < i && match(line[start:i]) {
			return start, i, true
		}
	}
	return 0, 0, false
}

// cutToken removes line[start:end] with the whitespace that separated it
// from its neighbour. It reports whether nothing but whitespace is left, in
// which case the whole line is to be dropped.
func cutToken(line string, start, end int) (string, bool) {
	before, after := line[:start], line[end:]
	if strings.TrimSpace(before+after) == "" {
		return "", true
	}
	if strings.TrimSpace(before) != "" {
		return strings.TrimRight(before, " \t") + after, false
	}
	return before + strings.TrimLeft(after, " \t"), false
}

// collapse returns the indices of the lines that survive removal of the
// dropped ones. Where lines were dropped, the blank lines around them shrink
// to the longest single run among them, and to nothing before the first line
// of content.
func collapse(lines []string, dropped []bool) []int {
	out := make([]int, 0, len(lines))
	var gap []int // blank lines since the last content line
	longest, run := 0, 0
	hadDrop := false
	seenContent := false

	flush := func() {
		switch {
		case !hadDrop:
			out = append(out, gap...)
		case seenContent:
			out = append(out, gap[:longest]...)
		}
		gap, longest, run, hadDrop = nil, 0, 0, false
	}

	for i, line := range lines {
		switch {
		case dropped[i]:
			hadDrop = true
			run = 0
		case strings.TrimSpace(line) == "":
			gap = append(gap, i)
			run++
			longest = max(longest, run)
		default:
			flush()
			seenContent = true
			out = append(out, i)
		}
	}
	flush()
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
