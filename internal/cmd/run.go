package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/harrison/thingamajig/internal/config"
	"github.com/harrison/thingamajig/internal/display"
	"github.com/harrison/thingamajig/internal/filelock"
	"github.com/harrison/thingamajig/internal/history"
	"github.com/harrison/thingamajig/internal/logger"
	"github.com/harrison/thingamajig/internal/models"
	"github.com/harrison/thingamajig/internal/parser"
	"github.com/harrison/thingamajig/internal/vm"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Load and execute a program",
		Long: `Load a program image at address 0 and execute it until HALT.

The program format is chosen by extension: .asm/.s assembly source,
.md/.markdown listings, .yaml/.yml manifests, anything else a raw image.

Before every instruction the decoded fields are printed (OP=.. A=.. B=..)
and after it the register file (REGS: ...). The run summary and final
registers are logged and the run is recorded in the history database.

Configuration is loaded from .thingamajig/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  thingamajig run countdown.asm
  thingamajig run --no-trace --max-steps 100000 image.bin
  thingamajig run --timeout 2s --dump memory.txt program.md
  thingamajig run --quiet --no-history program.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().Uint64("max-steps", 0, "Stop after this many instructions (0 = unlimited)")
	cmd.Flags().String("timeout", "", "Maximum wall-clock time (e.g., 500ms, 10s)")
	cmd.Flags().Bool("trace", false, "Print every executed instruction")
	cmd.Flags().Bool("no-trace", false, "Do not print executed instructions (overrides config)")
	cmd.Flags().Bool("annotate", false, "Add the address and disassembly to trace lines")
	cmd.Flags().BoolP("quiet", "q", false, "Only print warnings and errors")
	cmd.Flags().String("log-level", "", "Console log level (trace, debug, info, warn, error)")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().String("color", "", "Colored output: auto, always, never")
	cmd.Flags().String("dump", "", "Write a hexdump of memory to this file after the run")
	cmd.Flags().Bool("dump-raw", false, "Write the raw 64 KiB memory image instead of a hexdump")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("trace") && cmd.Flags().Changed("no-trace") {
		return fmt.Errorf("cannot use both --trace and --no-trace")
	}
	if err := mergeRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	color.NoColor = !cfg.ColorEnabled(os.Stdout.Fd())

	quiet, _ := cmd.Flags().GetBool("quiet")
	annotate, _ := cmd.Flags().GetBool("annotate")
	out := cmd.OutOrStdout()

	logLevel := cfg.LogLevel
	if quiet {
		logLevel = "warn"
	}
	var log logger.MultiLogger
	log = append(log, logger.NewConsoleLogger(out, logLevel))
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLoggerWithLevel(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer fileLog.Close()
		log = append(log, fileLog)
	}

	prog, err := parser.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}
	log.LogProgramLoaded(prog)

	core := vm.New()
	if err := core.Load(prog.Image); err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	if cfg.Trace && !quiet {
		core.SetTracer(logger.NewStepTracer(out, !color.NoColor && out == os.Stdout, annotate))
	}

	maxSteps := cfg.MaxSteps
	if !cmd.Flags().Changed("max-steps") && prog.MaxSteps > 0 {
		maxSteps = prog.MaxSteps
	}
	prog.MaxSteps = maxSteps
	if maxSteps > 0 {
		log.LogDebug(fmt.Sprintf("Step limit: %d", maxSteps))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	result := executeProgram(ctx, core, prog, maxSteps)
	log.LogSummary(*result)

	if dumpPath, _ := cmd.Flags().GetString("dump"); dumpPath != "" {
		raw, _ := cmd.Flags().GetBool("dump-raw")
		dumpCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := writeDump(dumpCtx, dumpPath, core, raw)
		cancel()
		if err != nil {
			log.LogError(fmt.Sprintf("Failed to write memory dump: %v", err))
		} else {
			log.LogInfo(fmt.Sprintf("Memory dump written to %s", dumpPath))
		}
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		if err := recordHistory(cfg, result); err != nil {
			log.LogWarn(fmt.Sprintf("Run not recorded in history: %v", err))
		}
	}

	if !result.Success() {
		return fmt.Errorf("%s did not halt: %w", prog.Name, result.Error)
	}
	return nil
}

// mergeRunFlags applies the flags the user actually set over cfg.
func mergeRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var logLevelPtr, logDirPtr, colorPtr *string
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		logLevelPtr = &v
	}
	if flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		logDirPtr = &v
	}
	if flags.Changed("color") {
		v, _ := flags.GetString("color")
		colorPtr = &v
	}

	var maxStepsPtr *uint64
	if flags.Changed("max-steps") {
		v, _ := flags.GetUint64("max-steps")
		maxStepsPtr = &v
	}

	var timeoutPtr *time.Duration
	if flags.Changed("timeout") {
		s, _ := flags.GetString("timeout")
		timeout, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid timeout format %q: %w", s, err)
		}
		timeoutPtr = &timeout
	}

	var tracePtr *bool
	if flags.Changed("trace") {
		v, _ := flags.GetBool("trace")
		tracePtr = &v
	} else if flags.Changed("no-trace") {
		v, _ := flags.GetBool("no-trace")
		v = !v
		tracePtr = &v
	}

	cfg.MergeWithFlags(logLevelPtr, logDirPtr, maxStepsPtr, timeoutPtr, tracePtr, colorPtr)
	return nil
}

// executeProgram runs core to completion and describes how it stopped.
func executeProgram(ctx context.Context, core *vm.Core, prog *models.Program, maxSteps uint64) *models.RunResult {
	sum := sha256.Sum256(prog.Image)
	result := &models.RunResult{
		ID:        uuid.New().String(),
		Program:   prog,
		ImageHash: hex.EncodeToString(sum[:]),
		StartedAt: time.Now(),
	}

	steps, err := core.Run(ctx, maxSteps)
	result.Duration = time.Since(result.StartedAt)
	result.Steps = steps
	result.Halted = core.Halted
	result.Error = err
	result.StopReason = stopReason(err)
	result.Registers = models.RegisterSnapshot{IP: core.Regs.IP, RP: core.Regs.RP, R: core.Regs.R}
	return result
}

func stopReason(err error) string {
	switch {
	case err == nil:
		return models.StopHalted
	case errors.Is(err, vm.ErrStepLimit):
		return models.StopStepLimit
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.StopTimeout
	default:
		return models.StopFault
	}
}

func writeDump(ctx context.Context, path string, core *vm.Core, raw bool) error {
	if raw {
		return filelock.LockAndWrite(ctx, path, core.Memory[:], 0644)
	}
	return filelock.WriteFunc(ctx, path, 0644, func(w io.Writer) error {
		display.HexDump(w, core.Memory[:], 0, vm.MemSize)
		return nil
	})
}

func recordHistory(cfg *config.Config, result *models.RunResult) error {
	dbPath, err := config.GetHistoryDBPath(cfg)
	if err != nil {
		return err
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// detached from the run context so a timed-out run is still recorded
	ctx := context.Background()
	if err := store.RecordRun(ctx, result); err != nil {
		return err
	}
	if cfg.History.KeepRuns > 0 {
		if _, err := store.Prune(ctx, cfg.History.KeepRuns); err != nil {
			return err
		}
	}
	return nil
}
