package parser

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Options controls how a Document is flattened into a ParsedFeature.
type Options struct {
	// IncludeFeatureCode prefixes every scenario's Code with the feature header.
	IncludeFeatureCode bool
	// IncludeRuleCode prefixes rule scenarios with their rule header.
	IncludeRuleCode bool
	// IncludeBackgroundCode prefixes scenarios with every background in scope.
	IncludeBackgroundCode bool
	// TagsInTitle appends the node's own tags to its display title.
	TagsInTitle bool
	// Exclude holds glob patterns removed from Analyze results.
	Exclude []string
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// ParsedFeature is the Layer 2 application model extracted from the AST.
// Error is set instead of everything else when the document failed to parse.
type ParsedFeature struct {
	Title       string // display title, tags appended in TagsInTitle mode
	Name        string // raw Feature: name
	File        string // path relative to the analyzed directory
	Line        int    // first tag line, or the Feature: line when untagged
	KeywordLine int    // Feature: line
	TagLine     int    // first tag line, 0 when untagged
	Tags        []string
	Description string
	Scenarios   []ParsedScenario
	Error       string
}

// ParsedScenario represents a single scenario extracted from a .feature file.
type ParsedScenario struct {
	Title       string
	Name        string
	Suite       string // display title of the owning feature
	File        string
	Line        int // first tag line, or the Scenario: line when untagged
	KeywordLine int // Scenario: line
	TagLine     int // tag line nearest to the keyword, 0 when untagged
	Tags        []string
	Steps       []ParsedStep
	Description string
	Code        string // Body prefixed by the enabled context slices
	Body        string // raw text from Line up to the next node
	Rule        *ParsedRule
	Outline     bool
}

// ParsedRule is the rule a scenario is nested in.
type ParsedRule struct {
	Name string
	Line int
	Tags []string
	Code string // rule header text up to its first child
}

// ParsedStep is a step with its continuation keyword resolved.
type ParsedStep struct {
	Keyword string `json:"keyword"`
	Title   string `json:"title"`
	Line    int    `json:"-"`
}

// HasError reports whether the feature is the error variant.
func (f ParsedFeature) HasError() bool {
	return f.Error != ""
}

// Transform converts a Layer 1 Document into a Layer 2 ParsedFeature.
func Transform(doc *Document, filename string, content []byte, errors []ParseError, opts Options) ParsedFeature {
	if len(errors) > 0 || doc == nil || doc.Feature == nil {
		return ParsedFeature{File: filename, Error: formatErrors(filename, errors)}
	}

	src := source{lines: splitSource(string(content))}
	f := doc.Feature

	pf := ParsedFeature{
		Title:       composeTitle(f.Header.Name, f.Header.Tags, opts.TagsInTitle),
		Name:        f.Header.Name,
		File:        filename,
		Line:        startLine(f.Header.Tags, f.Header.Line),
		KeywordLine: f.Header.Line,
		Tags:        tagNames(f.Header.Tags),
		Description: f.Header.Description,
	}
	if len(f.Header.Tags) > 0 {
		pf.TagLine = f.Header.Tags[0].Line
	}

	bounds := nodeStarts(f)
	featureCode := src.slice(pf.Line, firstAfter(bounds, pf.Line, src.eof()))

	var featureBackground string
	if f.Background != nil {
		bgStart := f.Background.Line
		featureBackground = src.slice(bgStart, firstAfter(bounds, bgStart, src.eof()))
	}

	var featureContext []string
	if opts.IncludeFeatureCode {
		featureContext = append(featureContext, featureCode)
	}
	if opts.IncludeBackgroundCode && featureBackground != "" {
		featureContext = append(featureContext, featureBackground)
	}

	log := opts.logger()
	emit := func(sd ScenarioDefinition, rule *ParsedRule, ruleContext []string) {
		if sd.Scenario.Name == "" {
			log.Warn("skipping scenario without a name", "file", filename, "line", sd.Line)
			return
		}
		start := startLine(sd.Tags, sd.Line)
		body := src.slice(start, firstAfter(bounds, start, src.eof()))

		parts := append(append([]string{}, ruleContext...), body)
		ps := ParsedScenario{
			Title:       composeTitle(sd.Scenario.Name, sd.Tags, opts.TagsInTitle),
			Name:        sd.Scenario.Name,
			Suite:       pf.Title,
			File:        filename,
			Line:        start,
			KeywordLine: sd.Line,
			TagLine:     lastTagLine(sd.Tags),
			Tags:        tagNames(sd.Tags),
			Steps:       resolveSteps(sd.Scenario.StepGroups),
			Description: sd.Scenario.Description,
			Code:        strings.Join(parts, "\n"),
			Body:        body,
			Rule:        rule,
			Outline:     sd.Scenario.Outline,
		}
		pf.Scenarios = append(pf.Scenarios, ps)
	}

	for _, sd := range f.Scenarios {
		emit(sd, nil, featureContext)
	}

	for ri, r := range f.Rules {
		ruleStart := startLine(r.Tags, r.Line)
		ruleEnd := src.eof()
		if ri+1 < len(f.Rules) {
			next := f.Rules[ri+1]
			ruleEnd = startLine(next.Tags, next.Line)
		}
		rule := &ParsedRule{
			Name: r.Name,
			Line: ruleStart,
			Tags: tagNames(r.Tags),
			Code: src.slice(ruleStart, min(firstAfter(bounds, ruleStart, src.eof()), ruleEnd)),
		}

		ruleContext := append([]string{}, featureContext...)
		if opts.IncludeRuleCode {
			ruleContext = append(ruleContext, rule.Code)
		}
		if opts.IncludeBackgroundCode && r.Background != nil {
			bgStart := r.Background.Line
			ruleContext = append(ruleContext, src.slice(bgStart, firstAfter(bounds, bgStart, src.eof())))
		}

		for _, sd := range r.Scenarios {
			emit(sd, rule, ruleContext)
		}
	}

	return pf
}

// resolveSteps flattens step groups, giving every continuation step the
// keyword of the primary step it follows.
func resolveSteps(groups []StepGroup) []ParsedStep {
	var steps []ParsedStep
	for _, g := range groups {
		keyword := g.Step.Keyword
		steps = append(steps, ParsedStep{Keyword: keyword, Title: g.Step.Text, Line: g.Step.Line})
		for _, alt := range g.AltSteps {
			steps = append(steps, ParsedStep{Keyword: keyword, Title: alt.Text, Line: alt.Line})
		}
	}
	return steps
}

// nodeStarts returns the sorted start lines of every background, scenario
// and rule in the feature.
func nodeStarts(f *Feature) []int {
	var starts []int
	if f.Background != nil {
		starts = append(starts, f.Background.Line)
	}
	for _, sd := range f.Scenarios {
		starts = append(starts, startLine(sd.Tags, sd.Line))
	}
	for _, r := range f.Rules {
		starts = append(starts, startLine(r.Tags, r.Line))
		if r.Background != nil {
			starts = append(starts, r.Background.Line)
		}
		for _, sd := range r.Scenarios {
			starts = append(starts, startLine(sd.Tags, sd.Line))
		}
	}
	sort.Ints(starts)
	return starts
}

// firstAfter returns the first bound greater than line, or fallback.
func firstAfter(bounds []int, line, fallback int) int {
	for _, b := range bounds {
		if b > line {
			return b
		}
	}
	return fallback
}

type source struct {
	lines []string
}

// eof is the line number one past the last line.
func (s source) eof() int {
	return len(s.lines) + 1
}

// slice returns lines [start, end) joined with newlines; line numbers are 1-based.
func (s source) slice(start, end int) string {
	from := max(start-1, 0)
	to := min(end-1, len(s.lines))
	if from >= to {
		return ""
	}
	return strings.Join(s.lines[from:to], "\n")
}

func composeTitle(name string, tags []Tag, tagsInTitle bool) string {
	if !tagsInTitle || len(tags) == 0 {
		return name
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return name + " " + strings.Join(names, " ")
}

func tagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, strings.TrimPrefix(t.Name, "@"))
	}
	return names
}

func formatErrors(filename string, errors []ParseError) string {
	if len(errors) == 0 {
		return fmt.Sprintf("%s: no feature found", filename)
	}
	msgs := make([]string, 0, len(errors))
	for _, e := range errors {
		msgs = append(msgs, fmt.Sprintf("(%d) %s", e.Line, e.Message))
	}
	return fmt.Sprintf("%s: %s", filename, strings.Join(msgs, "; "))
}
