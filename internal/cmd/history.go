package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/thingamajig/internal/config"
	"github.com/harrison/thingamajig/internal/display"
	"github.com/harrison/thingamajig/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the 'thingamajig history' parent command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `Commands for viewing and managing the run history.

Every run is recorded with its program, image hash, step count, stop
reason and final registers in .thingamajig/history/runs.db (or the
history.db_path configured).`,
	}

	cmd.PersistentFlags().String("db-path", "", "Path to history database (overrides config)")

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryStatsCommand())
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

// openHistory opens the history store, or returns nil when no database
// exists yet so read-only commands can report an empty history.
func openHistory(cmd *cobra.Command) (*history.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db-path")
	if dbPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		dbPath, err = config.GetHistoryDBPath(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to get history database path: %w", err)
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func newHistoryListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := cmd.OutOrStdout()
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(output, "No runs recorded.")
				return nil
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(output, "No runs recorded.")
				return nil
			}
			printRunTable(output, runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 = all)")

	return cmd
}

func printRunTable(output io.Writer, runs []*history.RunRecord) {
	tw := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tPROGRAM\tSTATUS\tSTEPS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.ProgramName,
			r.StopReason,
			r.Steps,
			r.Duration.Round(time.Millisecond),
		)
	}
	tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Long: `Show the details and final registers of a run.

The run ID may be abbreviated to any unique prefix, as printed by
'thingamajig history list'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("%w: %s", history.ErrNotFound, args[0])
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func printRun(output io.Writer, run *history.RunRecord) {
	bold := color.New(color.Bold)
	status := color.New(color.FgGreen).Sprint(run.StopReason)
	if !run.Halted || run.ErrorMessage != "" {
		status = color.New(color.FgRed).Sprint(run.StopReason)
	}

	fmt.Fprintf(output, "%s %s\n", bold.Sprint("Run"), run.ID)
	fmt.Fprintf(output, "  Program:    %s (%s)\n", run.ProgramName, run.Format)
	fmt.Fprintf(output, "  Path:       %s\n", run.ProgramPath)
	fmt.Fprintf(output, "  Image:      %d bytes, sha256 %s\n", run.ImageSize, run.ImageHash)
	fmt.Fprintf(output, "  Started:    %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(output, "  Status:     %s\n", status)
	if run.MaxSteps > 0 {
		fmt.Fprintf(output, "  Steps:      %d of %d\n", run.Steps, run.MaxSteps)
	} else {
		fmt.Fprintf(output, "  Steps:      %d\n", run.Steps)
	}
	fmt.Fprintf(output, "  Duration:   %s\n", run.Duration)
	if run.ErrorMessage != "" {
		fmt.Fprintf(output, "  Error:      %s\n", run.ErrorMessage)
	}
	fmt.Fprintf(output, "\n%s\n", bold.Sprint("Registers"))
	display.RegisterTable(output, run.Registers)
}

func newHistoryStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := cmd.OutOrStdout()
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(output, "No runs recorded.")
				return nil
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if stats.TotalRuns == 0 {
				fmt.Fprintln(output, "No runs recorded.")
				return nil
			}
			printStats(output, stats)
			return nil
		},
	}
}

func printStats(output io.Writer, stats *history.Stats) {
	fmt.Fprintf(output, "=== Run History ===\n\n")
	fmt.Fprintf(output, "Total runs:     %d\n", stats.TotalRuns)
	fmt.Fprintf(output, "Halted:         %d (%.1f%%)\n", stats.HaltedRuns, percent(stats.HaltedRuns, stats.TotalRuns))
	fmt.Fprintf(output, "Faulted:        %d\n", stats.FailedRuns)
	fmt.Fprintf(output, "Total steps:    %d\n", stats.TotalSteps)
	fmt.Fprintf(output, "Avg duration:   %s\n", stats.AvgDuration.Round(time.Millisecond))
	fmt.Fprintf(output, "Last run:       %s\n", stats.LastRunAt.Local().Format("2006-01-02 15:04:05"))

	names := make([]string, 0, len(stats.ByProgram))
	for name := range stats.ByProgram {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := stats.ByProgram[names[i]], stats.ByProgram[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(output, "\nRuns by program:\n")
	for _, name := range names {
		fmt.Fprintf(output, "  %-20s %d\n", name, stats.ByProgram[name])
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func newHistoryClearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := cmd.OutOrStdout()
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				fmt.Fprintln(output, "No history database found.")
				return nil
			}
			defer store.Close()

			if !yes {
				fmt.Fprintf(output, "WARNING: This will delete ALL recorded runs.\n")
				if !confirmAction(cmd.InOrStdin(), output) {
					fmt.Fprintf(output, "Operation cancelled.\n")
					return nil
				}
			}

			deleted, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			recordText := "run"
			if deleted != 1 {
				recordText = "runs"
			}
			fmt.Fprintf(output, "Deleted %d %s.\n", deleted, recordText)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// confirmAction prompts the user for confirmation
func confirmAction(input io.Reader, output io.Writer) bool {
	fmt.Fprintf(output, "Continue? [y/N]: ")

	scanner := bufio.NewScanner(input)
	if !scanner.Scan() {
		return false
	}
	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes"
}
