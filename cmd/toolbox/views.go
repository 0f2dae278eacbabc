package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/lean-toolbox/internal/types"
	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02 15:04:05"

// NewBarTable creates a static table for one page of bar records. Close prices are
// marked against the previous record on the page.
func NewBarTable(records []types.BarRecord) table.Model {
	columns := []table.Column{
		{Title: "Time", Width: 20},
		{Title: "Open", Width: 12},
		{Title: "High", Width: 12},
		{Title: "Low", Width: 12},
		{Title: "Close", Width: 16},
		{Title: "Volume", Width: 12},
	}

	rows := make([]table.Row, 0, len(records))

	var previous decimal.Decimal

	for i, record := range records {
		rows = append(rows, table.Row{
			record.Time.Format(timestampLayout),
			record.Open.String(),
			record.High.String(),
			record.Low.String(),
			FormatPriceWithChange(record.Close, previous, i > 0),
			fmt.Sprintf("%d", record.Volume),
		})

		previous = record.Close
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	// Nothing is selectable in a printed table.
	s.Selected = lipgloss.NewStyle()

	t.SetStyles(s)

	return t
}
