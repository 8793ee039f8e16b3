package parser

// Layer 1: Gherkin AST types, line numbers are 1-based

type Document struct {
	Feature *Feature
}

type Feature struct {
	Header     FeatureHeader
	Background *Background
	Scenarios  []ScenarioDefinition
	Rules      []Rule
}

type FeatureHeader struct {
	Tags        []Tag
	Keyword     string
	Name        string
	Description string
	Line        int // Feature: line
}

type Background struct {
	Keyword     string
	Name        string
	Description string
	StepGroups  []StepGroup
	Line        int // Background: line
}

type Rule struct {
	Tags        []Tag
	Keyword     string
	Name        string
	Description string
	Background  *Background
	Scenarios   []ScenarioDefinition
	Line        int // Rule: line
}

type ScenarioDefinition struct {
	Tags     []Tag
	Scenario Scenario
	Line     int // Scenario: line
}

type Scenario struct {
	Keyword     string // Scenario, Example, Scenario Outline, Scenario Template
	Name        string
	Description string
	StepGroups  []StepGroup
	Examples    []Examples
	Outline     bool
}

type Examples struct {
	Tags      []Tag
	Name      string
	HeaderRow []string
	Rows      [][]string
	Line      int
}

type Tag struct {
	Name string // e.g. "@smoke", "@T1a2b3c4d"
	Line int
}

// StepGroup is a primary step followed by the continuation steps
// (And, But, *) that inherit its keyword.
type StepGroup struct {
	Step     Step
	AltSteps []Step
}

type Step struct {
	Keyword  string // Given, When, Then, And, But, *
	Text     string
	Line     int
	Argument *StepArgument
}

type StepArgument struct {
	DocString *DocString
	DataTable *DataTable
}

type DocString struct {
	MediaType string
	Content   string
}

type DataTable struct {
	Rows [][]string
}

type ParseError struct {
	Line    int
	Message string
}

// startLine is the first tag line when tagged, the keyword line otherwise.
func startLine(tags []Tag, keywordLine int) int {
	if len(tags) > 0 && tags[0].Line < keywordLine {
		return tags[0].Line
	}
	return keywordLine
}

// lastTagLine is the tag line nearest to the keyword, or 0 when untagged.
func lastTagLine(tags []Tag) int {
	if len(tags) == 0 {
		return 0
	}
	return tags[len(tags)-1].Line
}
