package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	newStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	updStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	clnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
	idStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	boldStyle = lipgloss.NewStyle().Bold(true)
)

// NewLine marks a file that was created.
func NewLine(w io.Writer, path string) {
	fmt.Fprintln(w, newStyle.Render("new")+"  "+path)
}

// UpdLine marks a file that had identifiers written.
func UpdLine(w io.Writer, path string) {
	fmt.Fprintln(w, updStyle.Render("upd")+"  "+path)
}

// ClnLine marks a file that had identifiers removed.
func ClnLine(w io.Writer, path string) {
	fmt.Fprintln(w, clnStyle.Render("cln")+"  "+path)
}

// DryLine marks a file a dry run would have written.
func DryLine(w io.Writer, path string) {
	fmt.Fprintln(w, dimStyle.Render("dry")+"  "+path)
}

// ErrLine reports a file that could not be parsed.
func ErrLine(w io.Writer, msg string) {
	fmt.Fprintln(w, errStyle.Render("err")+"  "+msg)
}

// FeatureLine lists one parsed feature with its scenario count.
func FeatureLine(w io.Writer, title, file string, scenarios int) {
	fmt.Fprintf(w, "%s  %s %s\n", dimStyle.Render("ftr"), boldStyle.Render(title), dimStyle.Render(fmt.Sprintf("(%s, %d scenarios)", file, scenarios)))
}

func Warning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render("warning: "+fmt.Sprintf(format, args...)))
}

func SummaryLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

// MissingList prints a heading followed by one indented title per line.
func MissingList(w io.Writer, heading string, titles []string) {
	if len(titles) == 0 {
		return
	}
	fmt.Fprintln(w, warnStyle.Render(heading))
	for _, t := range titles {
		fmt.Fprintln(w, "  - "+t)
	}
}

// ListRow prints one aligned row of the list command.
func ListRow(w io.Writer, id, file, title string, idWidth, fileWidth int) {
	styledID := idStyle.Render(fmt.Sprintf("%-*s", idWidth, id))
	if id == "" {
		styledID = dimStyle.Render(fmt.Sprintf("%-*s", idWidth, "-"))
	}
	fmt.Fprintf(w, "%s  %-*s  %s\n", styledID, fileWidth, file, title)
}

// ShowHeader prints the heading of the show command.
func ShowHeader(w io.Writer, id, file string, line int) {
	fmt.Fprintf(w, "%s  %s\n", idStyle.Render(id), dimStyle.Render(fmt.Sprintf("%s:%d", file, line)))
}

// ShowGherkin prints feature text with keywords bold and tags highlighted.
func ShowGherkin(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		switch {
		case strings.HasPrefix(trimmed, "@"):
			fmt.Fprintln(w, indent+idStyle.Render(trimmed))
		case isKeywordLine(trimmed):
			fmt.Fprintln(w, indent+boldStyle.Render(trimmed))
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func isKeywordLine(trimmed string) bool {
	for _, kw := range []string{"Feature:", "Rule:", "Background:", "Scenario:", "Scenario Outline:", "Scenario Template:", "Example:", "Examples:"} {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}
