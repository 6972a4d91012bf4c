package output

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Table renders rows of cells as aligned text columns.
type Table struct {
	headers   []string
	rows      [][]string
	noHeader  bool
	separator string
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, separator: "  "}
}

// AddRow adds a row. Rows may be shorter or longer than the header.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetNoHeader suppresses the header row.
func (t *Table) SetNoHeader(noHeader bool) {
	t.noHeader = noHeader
}

// SetSeparator sets the column separator.
func (t *Table) SetSeparator(sep string) {
	t.separator = sep
}

// Render writes the table to w. An empty table writes nothing.
func (t *Table) Render(w io.Writer) error {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return nil
	}

	widths := t.widths()
	var sb strings.Builder

	if !t.noHeader && len(t.headers) > 0 {
		t.line(&sb, t.headers, widths)
		rules := make([]string, len(widths))
		for i, n := range widths {
			rules[i] = strings.Repeat("-", n)
		}
		t.line(&sb, rules, widths)
	}
	for _, row := range t.rows {
		t.line(&sb, row, widths)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the rendered table.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}

// widths returns the display width of each column, counted in runes.
func (t *Table) widths() []int {
	cols := len(t.headers)
	for _, row := range t.rows {
		cols = max(cols, len(row))
	}

	widths := make([]int, cols)
	measure := func(cells []string) {
		for i, c := range cells {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	return widths
}

// line writes one row, padding each cell to its column width. Trailing
// blanks are dropped.
func (t *Table) line(sb *strings.Builder, cells []string, widths []int) {
	var row strings.Builder
	for i, n := range widths {
		if i > 0 {
			row.WriteString(t.separator)
		}
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		row.WriteString(cell)
		if pad := n - utf8.RuneCountInString(cell); pad > 0 {
			row.WriteString(strings.Repeat(" ", pad))
		}
	}
	sb.WriteString(strings.TrimRight(row.String(), " "))
	sb.WriteString("\n")
}
