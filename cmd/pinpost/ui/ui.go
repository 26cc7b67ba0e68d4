package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func Bold(s string) string  { return lipgloss.NewStyle().Bold(true).Render(s) }
func Muted(s string) string { return mutedStyle.Render(s) }

// Bool renders yes/no for status output.
func Bool(v bool) string {
	if v {
		return okStyle.Render("yes")
	}
	return failStyle.Render("no")
}

func mark(style lipgloss.Style, glyph, format string, a []any) string {
	return style.Render(glyph) + " " + fmt.Sprintf(format, a...)
}

func SuccessMsg(format string, a ...any) string { return mark(okStyle, "✓", format, a) }
func WarnMsg(format string, a ...any) string    { return mark(warnStyle, "!", format, a) }
func InfoMsg(format string, a ...any) string    { return mark(accentStyle, "●", format, a) }

// Pair is one line of KeyValues output.
type Pair struct {
	key   string
	value string
}

func KV(key, value string) Pair {
	return Pair{key: key, value: value}
}

// KeyValues renders "key: value" lines with values aligned in one column.
func KeyValues(indent string, pairs ...Pair) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p.key)+1)
	}

	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(indent)
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("%-*s", width, p.key+":")))
		sb.WriteString(" " + p.value + "\n")
	}
	return sb.String()
}

// Table renders rows under a bold header inside a normal border.
func Table(headers []string, rows [][]string) string {
	cell := lipgloss.NewStyle().Padding(0, 1)
	header := cell.Bold(true).Foreground(lipgloss.Color("39"))

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
