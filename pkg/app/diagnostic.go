package app

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/klazomenai/provider-static-server/pkg/assets"
)

var (
	errorColor   = lipgloss.Color("9")
	commandColor = lipgloss.Color("12")
)

// Diagnostic renders the human-readable startup failure for err. A missing
// build output names the missing path and the command that produces it.
func Diagnostic(r *lipgloss.Renderer, err error, buildCommand string) string {
	red := r.NewStyle().Foreground(errorColor)
	blue := r.NewStyle().Foreground(commandColor)

	var missing *assets.MissingError
	if !errors.As(err, &missing) {
		return red.Render(err.Error())
	}

	cmd := blue.Render(buildCommand)
	if missing.Dir != "" {
		return red.Render(fmt.Sprintf("The %s folder doesn't exist. Please run ", missing.Dir)) +
			cmd + red.Render(" first.")
	}
	return red.Render(fmt.Sprintf("The entry document %s doesn't exist. Please run ", missing.Entry)) +
		cmd + red.Render(" first.")
}
