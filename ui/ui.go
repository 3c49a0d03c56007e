// Package ui is the terminal front end of the console monitor: a render sink
// that draws the live model as bars and sparklines or as a table, plus raw
// keyboard input.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// ClearScreen clears the terminal and homes the cursor.
func ClearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[1;1H")
}

// Warningf prints a yellow message.
func Warningf(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, statusStyle.Render(fmt.Sprintf(format, a...)))
}
