package handlers

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pulseboard/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = cellStyle.Foreground(lipgloss.Color("10"))
	failStyle   = cellStyle.Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// statusTable renders rows with the status column coloured. statusCol is
// the index of the column holding store.StatusOK or store.StatusFailed.
func statusTable(headers []string, rows [][]string, statusCol int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				if rows[row][statusCol] == store.StatusOK {
					return okStyle
				}
				return failStyle
			}
			return cellStyle
		})
	return t.Render()
}

func itoa(n int) string { return strconv.Itoa(n) }
