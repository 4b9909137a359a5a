package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/provision/internal/node"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

var (
	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	okStyle = lipgloss.NewStyle().
		Foreground(colorGreen)

	failStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderNodes produces one "name public-ip state" line per node. Styled
// output pads the columns and colours the state.
func renderNodes(nodes []node.Descriptor, styled bool) string {
	var b strings.Builder
	if !styled {
		for _, n := range nodes {
			fmt.Fprintf(&b, "%s %s %s\n", n.Name, n.PrimaryIP(), n.State)
		}
		return b.String()
	}

	nameWidth, ipWidth := 0, 0
	for _, n := range nodes {
		nameWidth = max(nameWidth, len(n.Name))
		ipWidth = max(ipWidth, len(n.PrimaryIP()))
	}
	for _, n := range nodes {
		name := nameStyle.Width(nameWidth).Render(n.Name)
		ip := dimStyle.Width(ipWidth).Render(n.PrimaryIP())
		fmt.Fprintf(&b, "%s  %s  %s\n", name, ip, stateStyle(n.State).Render(n.State))
	}
	return b.String()
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "running":
		return okStyle
	case "off", "stopping", "deleting":
		return failStyle
	default:
		return pendingStyle
	}
}

// renderDeploy summarizes a finished deployment with one line per script.
func renderDeploy(d *node.Descriptor, styled bool) string {
	var b strings.Builder
	if !styled {
		fmt.Fprintf(&b, "%s %s %s\n", d.Name, d.PrimaryIP(), d.State)
		for _, s := range d.Scripts {
			fmt.Fprintf(&b, "  %s: %d\n", s.Path, s.ExitStatus)
		}
		return b.String()
	}

	b.WriteString(nameStyle.Render(d.Name))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(d.PrimaryIP()))
	b.WriteString("\n")
	for _, s := range d.Scripts {
		mark, style := "✓", okStyle
		if s.ExitStatus != 0 {
			mark, style = "✗", failStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("  %s %s", mark, s.Path)))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  exit %d", s.ExitStatus)))
		b.WriteString("\n")
	}
	return b.String()
}
