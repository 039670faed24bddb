package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the terminal color scheme.
type Theme struct {
	Primary lipgloss.Color // headers and accents
	Dim     lipgloss.Color // secondary text
	Warn    lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#ffb86c"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
	Warn   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Cell:   lipgloss.NewStyle(),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		Warn:   lipgloss.NewStyle().Foreground(t.Warn),
	}
}

// Table is a result that can be printed as rows.
type Table interface {
	Header() []string
	Rows() [][]string
}

// RenderTable lays out a table with columns padded to their widest cell.
// Widths are measured with lipgloss so styled and wide characters align.
func (s Styles) RenderTable(t Table) string {
	header := t.Header()
	rows := t.Rows()

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(r[i]))
		}
	}

	var b strings.Builder
	line := func(cells []string, style lipgloss.Style) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i > 0 {
				b.WriteString("  ")
			}
			pad := ""
			if i < len(widths)-1 {
				pad = strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			}
			b.WriteString(style.Render(cell) + pad)
		}
		b.WriteString("\n")
	}
	line(header, s.Header)
	for _, r := range rows {
		line(r, s.Cell)
	}
	return b.String()
}
