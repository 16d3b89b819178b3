package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorGray   = lipgloss.Color("245")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed)
	styleDim     = lipgloss.NewStyle().Foreground(colorGray)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(14)
)

func printTitle(w io.Writer, s string) {
	fmt.Fprintln(w, styleTitle.Render(s))
}

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleSuccess.Render("✓ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleWarning.Render("! "+fmt.Sprintf(format, args...)))
}

func printFailure(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleError.Render("✗ "+fmt.Sprintf(format, args...)))
}

func printKeyValue(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %s %v\n", styleKey.Render(key+":"), value)
}
