// Package tags classifies Gherkin tags and recognizes the identifier tags
// issued by the remote service.
package tags

import (
	"regexp"
	"strings"
)

// Kind is the classification of a single tag.
type Kind int

const (
	KindPlain Kind = iota
	KindSuite
	KindTest
)

func (k Kind) String() string {
	switch k {
	case KindSuite:
		return "suite"
	case KindTest:
		return "test"
	default:
		return "plain"
	}
}

// Tag is a classified tag. Value always carries the leading "@".
type Tag struct {
	Kind  Kind
	Value string
}

// IDLength is the number of characters after the @S / @T prefix.
const IDLength = 8

var (
	suitePattern = regexp.MustCompile(`^@S[\w-]{8}$`)
	testPattern  = regexp.MustCompile(`^@T[\w-]{8}$`)
	titlePattern = regexp.MustCompile(`@([\w\-().,*:]+)`)
	tokenPattern = regexp.MustCompile(`@[^@\s]+`)
)

// ClassifyTag returns the kind of text, which may be given with or without
// the leading "@".
func ClassifyTag(text string) Tag {
	value := text
	if !strings.HasPrefix(value, "@") {
		value = "@" + value
	}
	switch {
	case suitePattern.MatchString(value):
		return Tag{Kind: KindSuite, Value: value}
	case testPattern.MatchString(value):
		return Tag{Kind: KindTest, Value: value}
	default:
		return Tag{Kind: KindPlain, Value: value}
	}
}

func IsSuiteID(text string) bool { return ClassifyTag(text).Kind == KindSuite }

func IsTestID(text string) bool { return ClassifyTag(text).Kind == KindTest }

// IsID reports whether text has the shape of a suite or test identifier.
func IsID(text string) bool { return ClassifyTag(text).Kind != KindPlain }

// FindID returns the first tag in names whose kind is k, and whether one exists.
func FindID(names []string, k Kind) (string, bool) {
	for _, n := range names {
		if t := ClassifyTag(n); t.Kind == k {
			return t.Value, true
		}
	}
	return "", false
}

// StripTitle removes every tag-like substring from a title so that a name
// carrying stray tags still matches its plain-text key.
func StripTitle(name string) string {
	return strings.TrimSpace(titlePattern.ReplaceAllString(name, ""))
}

// Tokens returns the @-prefixed tokens found on a tag line, in order.
func Tokens(line string) []string {
	return tokenPattern.FindAllString(line, -1)
}

// IsTagLine reports whether a trimmed line is a tag line.
func IsTagLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "@")
}
