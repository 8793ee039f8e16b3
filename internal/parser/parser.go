package parser

import (
	"fmt"
	"strings"

	"github.com/chriserin/featsync/internal/tags"
)

var (
	scenarioKeywords = []string{"Scenario Outline:", "Scenario Template:", "Scenario:", "Example:"}
	examplesKeywords = []string{"Examples:", "Scenarios:"}
	stepKeywords     = []string{"Given ", "When ", "Then ", "And ", "But ", "* "}
)

type blockMode int

const (
	modeNone blockMode = iota
	modeFeature
	modeRule
	modeBackground
	modeScenario
	modeExamples
)

// scanner carries the state of one Parse call.
type scanner struct {
	lines  []string
	i      int
	doc    *Document
	errors []ParseError

	pendingTags []Tag
	mode        blockMode
	inSteps     bool
	desc        []string

	ruleIdx    int // index into Feature.Rules, -1 at feature level
	background *Background
	scenario   *ScenarioDefinition
	groups     *[]StepGroup
	examples   *Examples
}

// Parse parses a .feature file and returns a Document AST and any parse errors.
// Errors are returned as data; a Document with a nil Feature means the file
// did not contain a Feature at all.
func Parse(filename string, content []byte) (*Document, []ParseError) {
	s := &scanner{
		lines:   splitSource(string(content)),
		doc:     &Document{},
		ruleIdx: -1,
	}

	for s.i < len(s.lines) {
		s.next()
	}
	s.closeBlock()

	if len(s.pendingTags) > 0 {
		s.fail(s.pendingTags[0].Line, "tags must be followed by Feature, Rule, Scenario or Examples")
	}
	if s.doc.Feature == nil && len(s.errors) == 0 {
		s.fail(len(s.lines)+1, "unexpected end of file, expected: Feature")
	}

	return s.doc, s.errors
}

func (s *scanner) fail(line int, format string, args ...any) {
	s.errors = append(s.errors, ParseError{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (s *scanner) next() {
	line := s.lines[s.i]
	trimmed := strings.TrimSpace(line)
	lineNo := s.i + 1

	if isDocStringDelimiter(trimmed) {
		s.docString()
		return
	}
	s.i++

	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return
	}

	if isTagLine(trimmed) {
		s.pendingTags = append(s.pendingTags, parseTags(trimmed, lineNo)...)
		return
	}

	if s.doc.Feature == nil {
		if !strings.HasPrefix(trimmed, "Feature:") {
			if len(s.errors) == 0 {
				s.fail(lineNo, "expected Feature, got '%s'", trimmed)
			}
			s.pendingTags = nil
			return
		}
		s.feature(trimmed, lineNo)
		return
	}

	switch {
	case strings.HasPrefix(trimmed, "Feature:"):
		s.fail(lineNo, "multiple Feature keywords")
		s.pendingTags = nil
	case strings.HasPrefix(trimmed, "Rule:"):
		s.rule(trimmed, lineNo)
	case strings.HasPrefix(trimmed, "Background:"):
		s.backgroundStart(trimmed, lineNo)
	case hasAnyPrefix(trimmed, scenarioKeywords) != "":
		s.scenarioStart(trimmed, hasAnyPrefix(trimmed, scenarioKeywords), lineNo)
	case hasAnyPrefix(trimmed, examplesKeywords) != "":
		s.examplesStart(trimmed, hasAnyPrefix(trimmed, examplesKeywords), lineNo)
	default:
		if len(s.pendingTags) > 0 {
			s.fail(s.pendingTags[0].Line, "tags must be followed by Feature, Rule, Scenario or Examples")
			s.pendingTags = nil
		}
		switch {
		case stepKeyword(trimmed) != "":
			s.stepLine(trimmed, lineNo)
		case strings.HasPrefix(trimmed, "|"):
			s.tableRow(trimmed, lineNo)
		default:
			s.text(trimmed, lineNo)
		}
	}
}

func (s *scanner) feature(trimmed string, lineNo int) {
	s.doc.Feature = &Feature{
		Header: FeatureHeader{
			Tags:    s.takeTags(),
			Keyword: "Feature",
			Name:    keywordName(trimmed, "Feature:"),
			Line:    lineNo,
		},
	}
	s.mode = modeFeature
	s.inSteps = false
}

func (s *scanner) rule(trimmed string, lineNo int) {
	s.closeBlock()
	f := s.doc.Feature
	f.Rules = append(f.Rules, Rule{
		Tags:    s.takeTags(),
		Keyword: "Rule",
		Name:    keywordName(trimmed, "Rule:"),
		Line:    lineNo,
	})
	s.ruleIdx = len(f.Rules) - 1
	s.mode = modeRule
	s.inSteps = false
}

func (s *scanner) backgroundStart(trimmed string, lineNo int) {
	s.closeBlock()
	// Background does not take tags
	s.pendingTags = nil

	bg := &Background{
		Keyword: "Background",
		Name:    keywordName(trimmed, "Background:"),
		Line:    lineNo,
	}
	f := s.doc.Feature
	if s.ruleIdx >= 0 {
		r := &f.Rules[s.ruleIdx]
		switch {
		case r.Background != nil:
			s.fail(lineNo, "duplicate Background")
		case len(r.Scenarios) > 0:
			s.fail(lineNo, "Background must come before any Scenario or Rule")
		default:
			r.Background = bg
		}
	} else {
		switch {
		case f.Background != nil:
			s.fail(lineNo, "duplicate Background")
		case len(f.Scenarios) > 0 || len(f.Rules) > 0:
			s.fail(lineNo, "Background must come before any Scenario or Rule")
		default:
			f.Background = bg
		}
	}

	s.background = bg
	s.groups = &bg.StepGroups
	s.mode = modeBackground
	s.inSteps = false
}

func (s *scanner) scenarioStart(trimmed, keyword string, lineNo int) {
	s.closeBlock()
	s.scenario = &ScenarioDefinition{
		Tags: s.takeTags(),
		Scenario: Scenario{
			Keyword: strings.TrimSuffix(keyword, ":"),
			Name:    keywordName(trimmed, keyword),
			Outline: strings.HasPrefix(keyword, "Scenario Outline") || strings.HasPrefix(keyword, "Scenario Template"),
		},
		Line: lineNo,
	}
	s.groups = &s.scenario.Scenario.StepGroups
	s.mode = modeScenario
	s.inSteps = false
}

func (s *scanner) examplesStart(trimmed, keyword string, lineNo int) {
	if s.scenario == nil {
		s.fail(lineNo, "Examples outside of a Scenario")
		s.pendingTags = nil
		return
	}
	s.flushDescription()
	sc := &s.scenario.Scenario
	sc.Outline = true
	sc.Examples = append(sc.Examples, Examples{
		Tags: s.takeTags(),
		Name: keywordName(trimmed, keyword),
		Line: lineNo,
	})
	s.examples = &sc.Examples[len(sc.Examples)-1]
	s.mode = modeExamples
	s.inSteps = false
}

func (s *scanner) stepLine(trimmed string, lineNo int) {
	if s.mode != modeBackground && s.mode != modeScenario {
		s.fail(lineNo, "step '%s' outside of a Scenario or Background", trimmed)
		return
	}
	s.flushDescription()
	s.inSteps = true

	keyword := stepKeyword(trimmed)
	st := Step{
		Keyword: strings.TrimSpace(keyword),
		Text:    strings.TrimSpace(strings.TrimPrefix(trimmed, keyword)),
		Line:    lineNo,
	}

	groups := s.groups
	if isContinuation(st.Keyword) {
		if len(*groups) == 0 {
			if st.Keyword != "*" {
				s.fail(lineNo, "first step '%s' must not be a continuation step", trimmed)
				return
			}
		} else {
			g := &(*groups)[len(*groups)-1]
			g.AltSteps = append(g.AltSteps, st)
			return
		}
	}
	*groups = append(*groups, StepGroup{Step: st})
}

func (s *scanner) tableRow(trimmed string, lineNo int) {
	row := parseTableRow(trimmed)
	if s.mode == modeExamples && s.examples != nil {
		if s.examples.HeaderRow == nil {
			s.examples.HeaderRow = row
		} else {
			s.examples.Rows = append(s.examples.Rows, row)
		}
		return
	}
	st := s.lastStep()
	if st == nil {
		s.fail(lineNo, "table row outside of a step or Examples")
		return
	}
	if st.Argument == nil {
		st.Argument = &StepArgument{}
	}
	if st.Argument.DataTable == nil {
		st.Argument.DataTable = &DataTable{}
	}
	st.Argument.DataTable.Rows = append(st.Argument.DataTable.Rows, row)
}

func (s *scanner) text(trimmed string, lineNo int) {
	if s.inSteps {
		s.fail(lineNo, "unexpected text '%s' after steps", trimmed)
		return
	}
	s.desc = append(s.desc, trimmed)
}

// docString consumes a doc string block starting at the current line and
// attaches it to the last step.
func (s *scanner) docString() {
	start := s.i
	opener := s.lines[s.i]
	trimmed := strings.TrimSpace(opener)
	delimiter := `"""`
	if strings.HasPrefix(trimmed, "```") {
		delimiter = "```"
	}
	indent := len(opener) - len(strings.TrimLeft(opener, " \t"))

	var content []string
	closed := false
	s.i++ // move past opening delimiter
	for s.i < len(s.lines) {
		line := s.lines[s.i]
		s.i++
		if strings.TrimSpace(line) == delimiter {
			closed = true
			break
		}
		if len(line) >= indent && strings.TrimSpace(line[:indent]) == "" {
			line = line[indent:]
		} else {
			line = strings.TrimLeft(line, " \t")
		}
		content = append(content, line)
	}

	if !closed {
		s.fail(start+1, "unterminated doc string")
		return
	}
	st := s.lastStep()
	if st == nil {
		s.fail(start+1, "doc string outside of a step")
		return
	}
	if st.Argument == nil {
		st.Argument = &StepArgument{}
	}
	st.Argument.DocString = &DocString{
		MediaType: strings.TrimSpace(strings.TrimPrefix(trimmed, delimiter)),
		Content:   strings.Join(content, "\n"),
	}
}

func (s *scanner) lastStep() *Step {
	if !s.inSteps || s.groups == nil || len(*s.groups) == 0 {
		return nil
	}
	g := &(*s.groups)[len(*s.groups)-1]
	if len(g.AltSteps) > 0 {
		return &g.AltSteps[len(g.AltSteps)-1]
	}
	return &g.Step
}

func (s *scanner) takeTags() []Tag {
	t := s.pendingTags
	s.pendingTags = nil
	return t
}

// flushDescription stores collected description lines on the current block.
func (s *scanner) flushDescription() {
	if len(s.desc) == 0 {
		return
	}
	d := strings.Join(s.desc, "\n")
	s.desc = nil

	f := s.doc.Feature
	switch s.mode {
	case modeFeature:
		f.Header.Description = d
	case modeRule:
		if s.ruleIdx >= 0 {
			f.Rules[s.ruleIdx].Description = d
		}
	case modeBackground:
		s.background.Description = d
	case modeScenario:
		s.scenario.Scenario.Description = d
	}
}

// closeBlock finishes the current block before a new keyword starts.
func (s *scanner) closeBlock() {
	if s.doc.Feature == nil {
		return
	}
	s.flushDescription()
	if s.scenario != nil {
		f := s.doc.Feature
		if s.ruleIdx >= 0 {
			r := &f.Rules[s.ruleIdx]
			r.Scenarios = append(r.Scenarios, *s.scenario)
		} else {
			f.Scenarios = append(f.Scenarios, *s.scenario)
		}
	}
	s.scenario = nil
	s.background = nil
	s.examples = nil
	s.groups = nil
	s.mode = modeNone
	s.inSteps = false
}

func parseTags(line string, lineNo int) []Tag {
	matches := tags.Tokens(stripComment(line))
	var out []Tag
	for _, m := range matches {
		out = append(out, Tag{Name: m, Line: lineNo})
	}
	return out
}

func parseTableRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	row := make([]string, 0, len(cells))
	for _, c := range cells {
		row = append(row, strings.TrimSpace(c))
	}
	return row
}

// stripComment drops a trailing " #..." comment from a tag line.
func stripComment(line string) string {
	if idx := strings.Index(line, " #"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func keywordName(trimmed, keyword string) string {
	return strings.TrimSpace(strings.TrimPrefix(trimmed, keyword))
}

func hasAnyPrefix(trimmed string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p) {
			return p
		}
	}
	return ""
}

func stepKeyword(trimmed string) string {
	if trimmed == "*" {
		return "*"
	}
	return hasAnyPrefix(trimmed, stepKeywords)
}

func isContinuation(keyword string) bool {
	return keyword == "And" || keyword == "But" || keyword == "*"
}

func isTagLine(trimmed string) bool {
	return tags.IsTagLine(trimmed)
}

func isDocStringDelimiter(trimmed string) bool {
	return strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "```")
}

// splitSource splits content into lines, accepting \n, \r\n and \r endings.
// A trailing line terminator does not produce an extra empty line.
func splitSource(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
