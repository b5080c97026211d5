// Package table renders rows as a terminal table with lipgloss, or as a
// Markdown table when the output is not a terminal.
package table

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	// Packages
	lipgloss "github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	term "golang.org/x/term"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// TableData is implemented by anything rendered as a table
type TableData interface {
	// Header returns the column labels
	Header() []string

	// Len returns the number of rows
	Len() int

	// Row returns the cells of row i, or nil to skip it. Wrap a value in
	// Bold to highlight it.
	Row(i int) []any
}

// Bold highlights a cell
type Bold struct{ Value any }

///////////////////////////////////////////////////////////////////////////////
// STYLES

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	boldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	cellStyle   = lipgloss.NewStyle()
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

const empty = "-"

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Write renders the table to w, as a bordered table when w is a terminal
// and as Markdown otherwise
func Write(w io.Writer, data TableData) error {
	var text string
	if width, ok := termWidth(w); ok {
		text = render(data, width)
	} else {
		text = RenderMarkdown(data)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// RenderMarkdown renders the table as a Markdown table
func RenderMarkdown(data TableData) string {
	header := data.Header()
	if len(header) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("| " + strings.Join(header, " | ") + " |\n|")
	buf.WriteString(strings.Repeat("---|", len(header)))
	for i := range data.Len() {
		row := data.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, len(header))
		for j := range cells {
			cells[j] = empty
			if j < len(row) {
				cells[j] = markdownCell(row[j])
			}
		}
		buf.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}
	return buf.String()
}

// Truncate shortens s to max runes on one line, ending in "…" when cut
func Truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// FormatCell returns the display string of a cell, with "-" for empty and
// zero values
func FormatCell(v any) string {
	if b, ok := v.(Bold); ok {
		return boldStyle.Render(FormatCell(b.Value))
	}
	return plain(v)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func render(data TableData, width int) string {
	t := lgtable.New().
		Headers(data.Header()...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Wrap(true).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for i := range data.Len() {
		row := data.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatCell(v)
		}
		t.Row(cells...)
	}

	result := t.Render()
	if width > 0 && widest(result) > width {
		t.Width(width)
		result = t.Render()
	}
	return result
}

func widest(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		n = max(n, lipgloss.Width(line))
	}
	return n
}

// termWidth returns the width of w if it is a terminal
func termWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, true
	}
	return width, true
}

func markdownCell(v any) string {
	if b, ok := v.(Bold); ok {
		if inner := markdownCell(b.Value); inner != empty {
			return "**" + inner + "**"
		}
		return empty
	}
	return strings.ReplaceAll(plain(v), "|", `\|`)
}

func plain(v any) string {
	switch v := v.(type) {
	case nil:
		return empty
	case string:
		if v == "" {
			return empty
		}
		return v
	case time.Time:
		if v.IsZero() {
			return empty
		}
		return v.Format("2006-01-02 15:04")
	case time.Duration:
		if v == 0 {
			return empty
		}
		return v.Round(time.Millisecond).String()
	case int, int64, uint, uint64:
		if s := fmt.Sprint(v); s != "0" {
			return s
		}
		return empty
	default:
		if s := fmt.Sprint(v); s != "" {
			return s
		}
		return empty
	}
}
