// Package logger provides logging implementations for thingamajig runs.
//
// The logger package offers leveled logging of run progress and summaries,
// plus a step tracer for the vm package. Implementations are thread-safe and
// support various output destinations (console, file, etc.).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/thingamajig/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// Logger is implemented by every run logger.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogProgramLoaded(prog *models.Program)
	LogSummary(result models.RunResult)
}

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Returns true for os.Stdout and os.Stderr unless color is disabled globally.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// fatih/color sets NoColor for non-TTYs and NO_COLOR; the CLI
		// overrides it from the color setting
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var formatted string
	if cl.colorOutput {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, colorLevel(level), message)
	} else {
		formatted = fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)
	}
	cl.writer.Write([]byte(formatted))
}

// colorLevel wraps a level name in its ANSI color.
func colorLevel(level string) string {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogProgramLoaded logs the program about to run at INFO level.
// Format: "[HH:MM:SS] Loading <path> (<name>, <n> bytes, <format>)"
func (cl *ConsoleLogger) LogProgramLoaded(prog *models.Program) {
	if cl.writer == nil || prog == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := prog.Name
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	fmt.Fprintf(cl.writer, "[%s] Loading %s (%s, %d bytes, %s)\n",
		timestamp(), prog.Path, name, prog.Size(), prog.Format)
}

// LogSummary logs the run summary at INFO level.
func (cl *ConsoleLogger) LogSummary(result models.RunResult) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var sb strings.Builder

	if cl.colorOutput {
		scheme := newColorScheme()
		fmt.Fprintf(&sb, "[%s] %s\n", ts, color.New(color.Bold).Sprint("=== Run Summary ==="))
		status := scheme.success.Sprint(result.StopReason)
		if !result.Success() {
			status = scheme.fail.Sprint(result.StopReason)
		}
		fmt.Fprintf(&sb, "[%s] %s\n", ts, formatColorizedMetric("Status", status, scheme))
		fmt.Fprintf(&sb, "[%s] %s\n", ts, formatColorizedMetric("Steps", result.Steps, scheme))
		fmt.Fprintf(&sb, "[%s] %s\n", ts, formatColorizedMetric("Duration", formatDuration(result.Duration), scheme))
		fmt.Fprintf(&sb, "[%s] %s\n", ts, formatColorizedRegisters(result.Registers, scheme))
		if result.Error != nil {
			fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.fail.Sprintf("Error: %v", result.Error))
		}
	} else {
		fmt.Fprintf(&sb, "[%s] === Run Summary ===\n", ts)
		fmt.Fprintf(&sb, "[%s] Status: %s\n", ts, result.StopReason)
		fmt.Fprintf(&sb, "[%s] Steps: %d\n", ts, result.Steps)
		fmt.Fprintf(&sb, "[%s] Duration: %s\n", ts, formatDuration(result.Duration))
		fmt.Fprintf(&sb, "[%s] %s\n", ts, formatRegisters(result.Registers))
		if result.Error != nil {
			fmt.Fprintf(&sb, "[%s] Error: %v\n", ts, result.Error)
		}
	}
	if result.ID != "" {
		fmt.Fprintf(&sb, "[%s] Run ID: %s\n", ts, result.ID)
	}

	cl.writer.Write([]byte(sb.String()))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatRegisters renders a register snapshot as "ip=0003 rp=0000 r0=ff ..."
func formatRegisters(r models.RegisterSnapshot) string {
	return fmt.Sprintf("Registers: ip=%04x rp=%04x r0=%02x r1=%02x r2=%02x r3=%02x",
		r.IP, r.RP, r.R[0], r.R[1], r.R[2], r.R[3])
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "850µs", "12ms", "5s", "1m30s"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Truncate(time.Second).String()
	case d >= time.Second:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	case d >= time.Millisecond:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}

// NoOpLogger is a Logger implementation that discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string) {}
func (n *NoOpLogger) LogDebug(message string) {}
func (n *NoOpLogger) LogInfo(message string) {}
func (n *NoOpLogger) LogWarn(message string) {}
func (n *NoOpLogger) LogError(message string) {}
func (n *NoOpLogger) LogProgramLoaded(prog *models.Program) {}
func (n *NoOpLogger) LogSummary(result models.RunResult) {}

// MultiLogger fans every call out to several loggers.
type MultiLogger []Logger

func (m MultiLogger) LogTrace(message string) {
	for _, l := range m {
		l.LogTrace(message)
	}
}

func (m MultiLogger) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m MultiLogger) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m MultiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m MultiLogger) LogError(message string) {
	for _, l := range m {
		l.LogError(message)
	}
}

func (m MultiLogger) LogProgramLoaded(prog *models.Program) {
	for _, l := range m {
		l.LogProgramLoaded(prog)
	}
}

func (m MultiLogger) LogSummary(result models.RunResult) {
	for _, l := range m {
		l.LogSummary(result)
	}
}
