package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true)

	// SuccessStyle for completed operations.
	SuccessStyle = lipgloss.NewStyle().Bold(true)
)

// FormatPriceWithChange formats a price with an indicator based on the previous price.
func FormatPriceWithChange(current, previous decimal.Decimal, hasPrevious bool) string {
	priceStr := current.String()

	if !hasPrevious {
		return priceStr
	}

	switch current.Cmp(previous) {
	case 1:
		return priceStr + " ▲"
	case -1:
		return priceStr + " ▼"
	default:
		return priceStr
	}
}
