package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SingleScenario(t *testing.T) {
	content := []byte(`Feature: Login
  Scenario: User logs in
    Given a user
    When  they log in
    Then  they see the dashboard
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	assert.Equal(t, "Login", doc.Feature.Header.Name)
	assert.Equal(t, 1, doc.Feature.Header.Line)
	require.Len(t, doc.Feature.Scenarios, 1)
	assert.Equal(t, "User logs in", doc.Feature.Scenarios[0].Scenario.Name)
	assert.Equal(t, 2, doc.Feature.Scenarios[0].Line)
	require.Len(t, doc.Feature.Scenarios[0].Scenario.StepGroups, 3)
	assert.Equal(t, "they log in", doc.Feature.Scenarios[0].Scenario.StepGroups[1].Step.Text)
}

func TestParse_MultipleScenarios(t *testing.T) {
	content := []byte(`Feature: Login
  Scenario: User logs in
    Given a user

  Scenario: User fails login
    Given a user
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 2)
	assert.Equal(t, "User logs in", doc.Feature.Scenarios[0].Scenario.Name)
	assert.Equal(t, "User fails login", doc.Feature.Scenarios[1].Scenario.Name)
	assert.Equal(t, 5, doc.Feature.Scenarios[1].Line)
}

func TestParse_Background(t *testing.T) {
	content := []byte(`Feature: Login
  Background:
    Given a registered user

  Scenario: User logs in
    When  they log in
    Then  they see the dashboard
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.NotNil(t, doc.Feature.Background)
	assert.Equal(t, 2, doc.Feature.Background.Line)
	require.Len(t, doc.Feature.Background.StepGroups, 1)
	require.Len(t, doc.Feature.Scenarios, 1)
	assert.Equal(t, "User logs in", doc.Feature.Scenarios[0].Scenario.Name)
}

func TestParse_ExistingIdentifierTags(t *testing.T) {
	content := []byte(`@S12345678
Feature: Login
  @T87654321
  Scenario: User logs in
    Given a user
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Header.Tags, 1)
	assert.Equal(t, Tag{Name: "@S12345678", Line: 1}, doc.Feature.Header.Tags[0])
	require.Len(t, doc.Feature.Scenarios, 1)
	require.Len(t, doc.Feature.Scenarios[0].Tags, 1)
	assert.Equal(t, Tag{Name: "@T87654321", Line: 3}, doc.Feature.Scenarios[0].Tags[0])
}

func TestParse_ScenarioOutlineWithExamples(t *testing.T) {
	content := []byte(`Feature: Login
  Scenario Outline: User logs in as <role>
    Given a user with role "<role>"

    @fast
    Examples: Roles
      | role  |
      | admin |
      | user  |
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 1)
	sc := doc.Feature.Scenarios[0].Scenario
	assert.True(t, sc.Outline)
	assert.Equal(t, "Scenario Outline", sc.Keyword)
	require.Len(t, sc.Examples, 1)
	assert.Equal(t, "Roles", sc.Examples[0].Name)
	assert.Equal(t, []string{"role"}, sc.Examples[0].HeaderRow)
	assert.Equal(t, [][]string{{"admin"}, {"user"}}, sc.Examples[0].Rows)
	require.Len(t, sc.Examples[0].Tags, 1)
	assert.Equal(t, "@fast", sc.Examples[0].Tags[0].Name)
}

func TestParse_Rules(t *testing.T) {
	content := []byte(`Feature: Business rules
  Background:
    Given all rules have something

  Rule: First rule
    Description of first rule

    Background:
      Given the first rule has something

    Scenario: Scenario 1.1
      Given a

  @second
  Rule: Second rule
    Scenario: Scenario 2.1
      Given b
`)
	doc, errors := Parse("rules.feature", content)
	require.Empty(t, errors)
	f := doc.Feature
	require.NotNil(t, f.Background)
	assert.Empty(t, f.Scenarios)
	require.Len(t, f.Rules, 2)

	assert.Equal(t, "First rule", f.Rules[0].Name)
	assert.Equal(t, "Description of first rule", f.Rules[0].Description)
	require.NotNil(t, f.Rules[0].Background)
	assert.Equal(t, 8, f.Rules[0].Background.Line)
	require.Len(t, f.Rules[0].Scenarios, 1)

	assert.Equal(t, "Second rule", f.Rules[1].Name)
	require.Len(t, f.Rules[1].Tags, 1)
	assert.Equal(t, 14, f.Rules[1].Tags[0].Line)
	require.Len(t, f.Rules[1].Scenarios, 1)
	assert.Equal(t, "Scenario 2.1", f.Rules[1].Scenarios[0].Scenario.Name)
}

func TestParse_StepGroups(t *testing.T) {
	content := []byte(`Feature: Steps
  Scenario: Grouping
    Given A
    And B
    When C
    But D
    * E
`)
	doc, errors := Parse("steps.feature", content)
	require.Empty(t, errors)
	groups := doc.Feature.Scenarios[0].Scenario.StepGroups
	require.Len(t, groups, 2)
	assert.Equal(t, "Given", groups[0].Step.Keyword)
	require.Len(t, groups[0].AltSteps, 1)
	assert.Equal(t, "And", groups[0].AltSteps[0].Keyword)
	assert.Equal(t, "When", groups[1].Step.Keyword)
	require.Len(t, groups[1].AltSteps, 2)
	assert.Equal(t, "E", groups[1].AltSteps[1].Text)
}

func TestParse_ContinuationAsFirstStepError(t *testing.T) {
	content := []byte(`Feature: Steps
  Scenario: Broken
    And B
`)
	_, errors := Parse("steps.feature", content)
	require.Len(t, errors, 1)
	assert.Equal(t, 3, errors[0].Line)
	assert.Contains(t, errors[0].Message, "must not be a continuation step")
}

func TestParse_EmptyFile(t *testing.T) {
	doc, errors := Parse("empty.feature", []byte(""))
	require.Len(t, errors, 1)
	assert.Nil(t, doc.Feature)
	assert.Equal(t, "unexpected end of file, expected: Feature", errors[0].Message)
}

func TestParse_NoFeatureLine(t *testing.T) {
	content := []byte(`  Scenario: User logs in
    Given a user
`)
	doc, errors := Parse("login.feature", content)
	require.Len(t, errors, 1)
	assert.Nil(t, doc.Feature)
	assert.Equal(t, "expected Feature, got 'Scenario: User logs in'", errors[0].Message)
}

func TestParse_StepOutsideScenario(t *testing.T) {
	content := []byte(`Feature: Login
  Given a user
`)
	_, errors := Parse("login.feature", content)
	require.Len(t, errors, 1)
	assert.Equal(t, 2, errors[0].Line)
}

func TestParse_BackgroundAfterScenario(t *testing.T) {
	content := []byte(`Feature: Login
  Scenario: First
    Given a
  Background:
    Given b
`)
	_, errors := Parse("login.feature", content)
	require.Len(t, errors, 1)
	assert.Equal(t, "Background must come before any Scenario or Rule", errors[0].Message)
}

func TestParse_DanglingTags(t *testing.T) {
	content := []byte(`Feature: Login
  Scenario: First
    Given a
  @orphan
`)
	_, errors := Parse("login.feature", content)
	require.Len(t, errors, 1)
	assert.Equal(t, 4, errors[0].Line)
}

func TestParse_BlankLinesWithinScenario(t *testing.T) {
	content := []byte(`Feature: Login
  Scenario: User logs in
    Given a user

    When  they log in

    Then  they see the dashboard
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 1)
	assert.Len(t, doc.Feature.Scenarios[0].Scenario.StepGroups, 3)
}

func TestParse_Comments(t *testing.T) {
	content := []byte(`# language: en
# This is a comment
Feature: Login
  # Another comment
  Scenario: User logs in
    Given a user
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	assert.Equal(t, "Login", doc.Feature.Header.Name)
	require.Len(t, doc.Feature.Scenarios, 1)
}

func TestParse_Descriptions(t *testing.T) {
	content := []byte(`Feature: Login
  As a user
  I want to log in

  Scenario: User logs in
    Some words about it
    Given a user
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	assert.Equal(t, "As a user\nI want to log in", doc.Feature.Header.Description)
	assert.Equal(t, "Some words about it", doc.Feature.Scenarios[0].Scenario.Description)
}

func TestParse_MultipleTags(t *testing.T) {
	content := []byte(`Feature: Login
  @smoke @T12345678 @regression
  Scenario: User logs in
    Given a user
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 1)
	tags := doc.Feature.Scenarios[0].Tags
	require.Len(t, tags, 3)
	assert.Equal(t, "@smoke", tags[0].Name)
	assert.Equal(t, "@T12345678", tags[1].Name)
	assert.Equal(t, "@regression", tags[2].Name)
}

func TestParse_TagsBeforeMultipleScenarios(t *testing.T) {
	content := []byte(`Feature: Login
  @tag1
  Scenario: First
    Given a

  @tag2
  Scenario: Second
    Given b
`)
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 2)
	require.Len(t, doc.Feature.Scenarios[0].Tags, 1)
	assert.Equal(t, "@tag1", doc.Feature.Scenarios[0].Tags[0].Name)
	require.Len(t, doc.Feature.Scenarios[1].Tags, 1)
	assert.Equal(t, "@tag2", doc.Feature.Scenarios[1].Tags[0].Name)
}

func TestParse_DocStringContentIsOpaque(t *testing.T) {
	content := []byte(`Feature: Parse Scenarios
  Scenario: Already-tagged scenario is skipped
    Given the file login.feature contains:
      """gherkin
      Feature: Login
        @T12345678
        Scenario: User logs in
          Given a user
      """
    When the user runs push
    Then nothing is written
`)
	doc, errors := Parse("test.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 1)
	groups := doc.Feature.Scenarios[0].Scenario.StepGroups
	require.Len(t, groups, 3)
	arg := groups[0].Step.Argument
	require.NotNil(t, arg)
	require.NotNil(t, arg.DocString)
	assert.Equal(t, "gherkin", arg.DocString.MediaType)
	assert.Equal(t, "Feature: Login\n  @T12345678\n  Scenario: User logs in\n    Given a user", arg.DocString.Content)
}

func TestParse_DocStringWithBackticks(t *testing.T) {
	content := []byte("Feature: Test\n  Scenario: Has code block\n    Given content:\n      ```\n      Scenario: Not real\n      @T99999999\n      ```\n    Then it works\n")
	doc, errors := Parse("test.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 1)
	assert.Equal(t, "Has code block", doc.Feature.Scenarios[0].Scenario.Name)
}

func TestParse_UnterminatedDocString(t *testing.T) {
	content := []byte("Feature: Test\n  Scenario: Open\n    Given content:\n      \"\"\"\n      never closed\n")
	_, errors := Parse("test.feature", content)
	require.Len(t, errors, 1)
	assert.Equal(t, "unterminated doc string", errors[0].Message)
	assert.Equal(t, 4, errors[0].Line)
}

func TestParse_DataTable(t *testing.T) {
	content := []byte(`Feature: Users
  Scenario: Many users
    Given these users:
      | name  | role  |
      | alice | admin |
`)
	doc, errors := Parse("users.feature", content)
	require.Empty(t, errors)
	arg := doc.Feature.Scenarios[0].Scenario.StepGroups[0].Step.Argument
	require.NotNil(t, arg)
	require.NotNil(t, arg.DataTable)
	assert.Equal(t, [][]string{{"name", "role"}, {"alice", "admin"}}, arg.DataTable.Rows)
}

func TestParse_CRLF(t *testing.T) {
	content := []byte("Feature: Login\r\n  Scenario: User logs in\r\n    Given a user\r\n")
	doc, errors := Parse("login.feature", content)
	require.Empty(t, errors)
	require.Len(t, doc.Feature.Scenarios, 1)
	assert.Equal(t, "User logs in", doc.Feature.Scenarios[0].Scenario.Name)
}
