package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string // Main warning title
	Message    string // Detailed explanation (optional)
	Location   string // Source file or address the warning refers to (optional)
	Suggestion string // Action to take (optional)
}

// Display shows a formatted warning in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder
	yellow := color.New(color.FgYellow)

	b.WriteString(yellow.Sprint("Warning: " + w.Title))
	b.WriteString("\n")

	if w.Message != "" {
		fmt.Fprintf(&b, "    %s\n", w.Message)
	}
	if w.Location != "" {
		fmt.Fprintf(&b, "    At: %s\n", w.Location)
	}
	if w.Suggestion != "" {
		fmt.Fprintf(&b, "    %s %s\n", color.New(color.FgCyan).Sprint("Suggestion:"), w.Suggestion)
	}

	fmt.Fprint(out, b.String())
}
