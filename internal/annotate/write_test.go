package annotate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chriserin/featsync/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func analyze(t *testing.T, dir string) []parser.ParsedFeature {
	t.Helper()
	features, err := parser.Analyze(parser.DefaultPattern, dir, parser.Options{})
	require.NoError(t, err)
	return features
}

func loginIDs() IdentifierMap {
	return IdentifierMap{
		Suites: map[string]string{"Login": "@S11111111"},
		Tests:  map[string]string{"Good login": "@T11111111"},
	}
}

func TestWrite_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\n  Scenario: Good login\n    Given a user\n")

	res, err := Write(analyze(t, dir), loginIDs(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, res.Files)
	assert.Equal(t, 1, res.Suites)
	assert.Equal(t, 1, res.Tests)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, "@S11111111\nFeature: Login\n  @T11111111\n  Scenario: Good login\n    Given a user\n", readFixture(t, path))
}

func TestWrite_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "@smoke\nFeature: Login\n  @fast\n  Scenario: Good login\n    Given a user\n")

	_, err := Write(analyze(t, dir), loginIDs(), dir, Options{})
	require.NoError(t, err)
	first := readFixture(t, path)
	assert.Equal(t, "@smoke @S11111111\nFeature: Login\n  @fast @T11111111\n  Scenario: Good login\n    Given a user\n", first)

	res, err := Write(analyze(t, dir), loginIDs(), dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	second := readFixture(t, path)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(second, "@S11111111"))
	assert.Equal(t, 1, strings.Count(second, "@T11111111"))
}

func TestWrite_MultipleScenariosTrackOffset(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", `Feature: Login

  Scenario: One
    Given a

  @smoke
  Scenario: Two
    Given b

  Scenario: Three
    Given c
`)
	ids := IdentifierMap{
		Suites: map[string]string{"Login": "@S11111111"},
		Tests: map[string]string{
			"One":   "@T11111111",
			"Two":   "@T22222222",
			"Three": "@T33333333",
		},
	}

	res, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Tests)
	assert.Equal(t, `@S11111111
Feature: Login

  @T11111111
  Scenario: One
    Given a

  @smoke @T22222222
  Scenario: Two
    Given b

  @T33333333
  Scenario: Three
    Given c
`, readFixture(t, path))
}

func TestWrite_RuleScenariosIndented(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "rules.feature", `Feature: Rules
  Rule: First
    Scenario: Inside
      Given a
`)
	ids := IdentifierMap{Tests: map[string]string{"Inside": "@T11111111"}}

	_, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, `Feature: Rules
  Rule: First
    @T11111111
    Scenario: Inside
      Given a
`, readFixture(t, path))
}

func TestWrite_CompoundKeyPreferred(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\n  Scenario: Good login\n    Given a user\n")
	ids := IdentifierMap{
		Suites: map[string]string{
			"Login":               "@S00000000",
			"login.feature#Login": "@S11111111",
		},
		Tests: map[string]string{
			"Good login":                     "@T00000000",
			"Login#Good login":               "@T22222222",
			"login.feature#Login#Good login": "@T11111111",
		},
	}

	_, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "@S11111111\nFeature: Login\n  @T11111111\n  Scenario: Good login\n    Given a user\n", readFixture(t, path))
}

func TestWrite_CompoundKeyForOtherFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\n  Scenario: Good login\n    Given a user\n")
	ids := IdentifierMap{
		Tests: map[string]string{
			"Good login":                     "@T00000000",
			"other.feature#Login#Good login": "@T11111111",
		},
	}

	_, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Contains(t, readFixture(t, path), "@T00000000")
	assert.NotContains(t, readFixture(t, path), "@T11111111")
}

func TestWrite_ConflictLeavesNodeUntouched(t *testing.T) {
	dir := t.TempDir()
	content := "@S99999999\nFeature: Login\n  Scenario: Good login\n    Given a user\n"
	path := writeFixture(t, dir, "login.feature", content)

	res, err := Write(analyze(t, dir), loginIDs(), dir, Options{})
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, "login.feature", c.File)
	assert.Equal(t, "@S99999999", c.Existing)
	assert.Equal(t, "@S11111111", c.Wanted)
	assert.Contains(t, c.String(), "login.feature:2")
	assert.Equal(t, 0, res.Suites)
	assert.Equal(t, 1, res.Tests)

	got := readFixture(t, path)
	assert.NotContains(t, got, "@S11111111")
	assert.Equal(t, "@S99999999\nFeature: Login\n  @T11111111\n  Scenario: Good login\n    Given a user\n", got)
}

func TestWrite_NoMatchingIDs(t *testing.T) {
	dir := t.TempDir()
	content := "Feature: Login\n  Scenario: Good login\n    Given a user\n"
	path := writeFixture(t, dir, "login.feature", content)

	res, err := Write(analyze(t, dir), IdentifierMap{}, dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, content, readFixture(t, path))
}

func TestWrite_TitleIDs(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\n  Scenario: Good login\n    Given a user\n")

	_, err := Write(analyze(t, dir), loginIDs(), dir, Options{TitleIDs: true})
	require.NoError(t, err)
	want := "Feature: Login @S11111111\n  Scenario: Good login @T11111111\n    Given a user\n"
	assert.Equal(t, want, readFixture(t, path))

	res, err := Write(analyze(t, dir), loginIDs(), dir, Options{TitleIDs: true})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Equal(t, want, readFixture(t, path))
}

func TestWrite_KeepsCRLFAndMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\r\n  Scenario: Good login\r\n    Given a user\r\n")
	require.NoError(t, os.Chmod(path, 0600))

	_, err := Write(analyze(t, dir), loginIDs(), dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "@S11111111\r\nFeature: Login\r\n  @T11111111\r\n  Scenario: Good login\r\n    Given a user\r\n", readFixture(t, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestWrite_TagLineComment(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\n  @wip # pending\n  Scenario: Good login\n    Given a user\n")
	ids := IdentifierMap{Tests: map[string]string{"Good login": "T11111111"}}

	_, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Feature: Login\n  @wip @T11111111 # pending\n  Scenario: Good login\n    Given a user\n", readFixture(t, path))
}

func TestWrite_SkipsErrorFeatures(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "empty.feature", "")

	res, err := Write(analyze(t, dir), loginIDs(), dir, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Files)
}

func TestIdentifierMap_Lookup(t *testing.T) {
	ids := IdentifierMap{
		Suites: map[string]string{"Login": "S11111111"},
		Tests: map[string]string{
			"Good login":       "@T11111111",
			"Login#Good login": "@T22222222",
		},
	}

	id, ok := ids.SuiteID("login.feature", "Login @smoke")
	require.True(t, ok)
	assert.Equal(t, "@S11111111", id)

	id, ok = ids.TestID("a.feature", "Login", "Good login")
	require.True(t, ok)
	assert.Equal(t, "@T22222222", id)

	id, ok = ids.TestID("a.feature", "Logout", "Good login")
	require.True(t, ok)
	assert.Equal(t, "@T11111111", id)

	_, ok = ids.TestID("a.feature", "Logout", "Bad login")
	assert.False(t, ok)

	assert.Equal(t, []string{"@S11111111", "@T11111111", "@T22222222"}, ids.Values())
	assert.Equal(t, 3, ids.Len())
}

func TestWrite_FileKeyUsedForCompoundKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\n  Scenario: Good login\n    Given a user\n")
	ids := IdentifierMap{
		Tests: map[string]string{
			"Good login":                         "@T00000000",
			"e2e/login.feature#Login#Good login": "@T11111111",
		},
	}
	opts := Options{FileKey: func(file string) string { return "e2e/" + file }}

	_, err := Write(analyze(t, dir), ids, dir, opts)
	require.NoError(t, err)
	assert.Contains(t, readFixture(t, path), "@T11111111")
}

func TestWrite_CROnlyLineEndings(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\r  Scenario: One\r    Given a\r")
	ids := IdentifierMap{
		Suites: map[string]string{"Login": "@S11111111"},
		Tests:  map[string]string{"One": "@T11111111"},
	}

	res, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tests)
	assert.Equal(t, "@S11111111\rFeature: Login\r  @T11111111\r  Scenario: One\r    Given a\r", readFixture(t, path))

	reparsed := analyze(t, dir)
	require.Len(t, reparsed, 1)
	assert.False(t, reparsed[0].HasError())
}

func TestWrite_MixedLineEndings(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "login.feature", "Feature: Login\r\n  Scenario: One\n    Given a\n\n  @wip\r  Scenario: Two\r    Given b\r\n")
	ids := IdentifierMap{Tests: map[string]string{"One": "@T11111111", "Two": "@T22222222"}}

	res, err := Write(analyze(t, dir), ids, dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tests)
	assert.Equal(t, "Feature: Login\r\n  @T11111111\n  Scenario: One\n    Given a\n\n  @wip @T22222222\r  Scenario: Two\r    Given b\r\n", readFixture(t, path))
}
