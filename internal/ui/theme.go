// Package ui holds the terminal styles shared by the CLI commands.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	IconStats  = "📊"
	IconTasks  = "📜"
	IconParty  = "🛡️"
	IconDone   = "✅"
	IconSleep  = "💤"
	IconWarn   = "⚠️"
	IconSwords = "⚔️"
)

var (
	cPrimary = lipgloss.Color("63")
	cGood    = lipgloss.Color("42")
	cWarn    = lipgloss.Color("214")
	cBad     = lipgloss.Color("196")
	cMuted   = lipgloss.Color("244")
	cGold    = lipgloss.Color("220")
)

var (
	H2    = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Key   = lipgloss.NewStyle().Bold(true).Foreground(cPrimary)
	Muted = lipgloss.NewStyle().Foreground(cMuted)
	Good  = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn  = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad   = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Gold  = lipgloss.NewStyle().Bold(true).Foreground(cGold)
)

func Heading(icon, title string) string {
	icon = strings.TrimSpace(icon)
	if icon != "" {
		icon += " "
	}
	return H2.Render(icon + title)
}

func LabelValue(label string, value any) string {
	return fmt.Sprintf("%s %v", Key.Render(label+":"), value)
}

// Meter renders cur/limit, colored by how full it is.
func Meter(cur, limit float64) string {
	text := fmt.Sprintf("%.1f / %.0f", cur, limit)
	switch {
	case limit <= 0:
		return Muted.Render(text)
	case cur/limit < 0.25:
		return Bad.Render(text)
	case cur/limit < 0.5:
		return Warn.Render(text)
	default:
		return Good.Render(text)
	}
}
