package main

import "github.com/charmbracelet/lipgloss"

// palette styles terminal output.
type palette struct {
	title   lipgloss.Style
	heading lipgloss.Style
	body    lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	help    lipgloss.Style
}

func newPalette() *palette {
	return &palette{
		title:   newBold("#1DB954").MarginBottom(1),
		heading: newBold("#7D56F4"),
		body:    lipgloss.NewStyle().Width(72),
		ok:      newBold("#04B575"),
		err:     newBold("#FF5F5F"),
		help:    newStyle("#626262").Italic(true),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}
