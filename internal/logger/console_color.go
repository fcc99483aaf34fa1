package logger

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harrison/thingamajig/internal/models"
)

// colorScheme defines consistent colors for summary and trace output.
// Green: success, Red: failure, Yellow: changed values, Cyan: labels
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
// Format: "label: value"
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatColorizedRegisters renders the register snapshot with cyan names.
func formatColorizedRegisters(r models.RegisterSnapshot, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s=%s %s=%s %s=%s %s=%s %s=%s %s=%s",
		scheme.label.Sprint("Registers"),
		scheme.label.Sprint("ip"), scheme.value.Sprintf("%04x", r.IP),
		scheme.label.Sprint("rp"), scheme.value.Sprintf("%04x", r.RP),
		scheme.label.Sprint("r0"), scheme.value.Sprintf("%02x", r.R[0]),
		scheme.label.Sprint("r1"), scheme.value.Sprintf("%02x", r.R[1]),
		scheme.label.Sprint("r2"), scheme.value.Sprintf("%02x", r.R[2]),
		scheme.label.Sprint("r3"), scheme.value.Sprintf("%02x", r.R[3]),
	)
}
