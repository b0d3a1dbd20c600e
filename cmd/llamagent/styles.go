package main

import "github.com/charmbracelet/lipgloss"

// Centralized style definitions for the console.
var (
	// User prompt.
	userPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue

	// Reasoning stripped from replies.
	thinkingTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true) // dim

	// Tool call styles.
	toolNameStyle   = lipgloss.NewStyle().Bold(true)                      // bold
	toolResultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim gray
	toolErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red

	// Agent answer styles.
	answerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	answerBlockStyle  = lipgloss.NewStyle().PaddingLeft(1)

	// Client styles.
	serverStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")) // magenta

	// General utility styles.
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // gray

	// Error block style.
	errorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("1"))
)

// Tree-drawing characters for hierarchical display.
const (
	treeCorner = "└ "
	treePipe   = "│ "
)
