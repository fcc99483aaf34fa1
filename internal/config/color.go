package config

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ColorEnvVar overrides the configured color mode; CI sets it to "always"
// so logs keep their colors without a terminal.
const ColorEnvVar = "THINGAMAJIG_COLOR"

// ColorEnabled decides whether output to the file descriptor fd should be
// colored. THINGAMAJIG_COLOR wins over the configured mode; in auto mode
// NO_COLOR disables color and otherwise fd must be a terminal.
func (c *Config) ColorEnabled(fd uintptr) bool {
	mode := c.Color
	if env := strings.ToLower(strings.TrimSpace(os.Getenv(ColorEnvVar))); env != "" {
		mode = env
	}

	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}

	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
