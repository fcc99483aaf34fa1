package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/harrison/thingamajig/internal/asm"
	"github.com/harrison/thingamajig/internal/display"
	"github.com/harrison/thingamajig/internal/fileutil"
	"github.com/harrison/thingamajig/internal/isa"
	"github.com/harrison/thingamajig/internal/models"
	"github.com/harrison/thingamajig/internal/parser"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "validate <program-or-directory>...",
		Short: "Check that programs load without running them",
		Long: `Parse and assemble each program, checking for:
  - Syntax and assembly errors (all errors are reported with line numbers)
  - Empty images
  - Images that fit in memory
  - A reachable HALT instruction in the linear instruction stream

Directories are scanned for program files (.asm, .s, .md, .yaml, .yml,
.bin, .img); use --recursive to descend into subdirectories.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := fileutil.FindPrograms(args, fileutil.ScanOptions{Recursive: recursive})
			if err != nil {
				return err
			}
			for _, e := range res.Errors {
				display.Warning{Title: "Skipped unreadable entry", Message: e.Error()}.Display(cmd.OutOrStdout())
			}
			if len(res.Files) == 0 {
				return fmt.Errorf("no program files found in %s", strings.Join(args, ", "))
			}
			return validatePrograms(res.Files, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Scan directories recursively")

	return cmd
}

// validatePrograms validates every path and reports a combined result
func validatePrograms(paths []string, output io.Writer) error {
	failed := 0
	for _, path := range paths {
		prog, err := parser.ParseFile(path)
		if err != nil {
			fmt.Fprintf(output, "✗ %s\n", path)
			fmt.Fprintf(output, "  Error: %v\n", err)
			failed++
			continue
		}
		if prog.Size() == 0 {
			fmt.Fprintf(output, "✗ %s: empty image\n", path)
			failed++
			continue
		}

		fmt.Fprintf(output, "✓ %s: %d bytes (%s)\n", path, prog.Size(), prog.Format)
		for _, w := range programWarnings(prog) {
			w.Display(output)
		}
	}

	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d program(s)", failed, len(paths))
	}
	fmt.Fprintf(output, "\n✓ All %d program(s) valid!\n", len(paths))
	return nil
}

// programWarnings reports suspicious but loadable images
func programWarnings(prog *models.Program) []display.Warning {
	lines := asm.Disassemble(prog.Image, 0)
	for _, l := range lines {
		if len(l.Bytes) == 1 && isa.Decode(l.Bytes[0]).Op == isa.OpHalt {
			return nil
		}
	}
	return []display.Warning{{
		Title:      fmt.Sprintf("%s has no HALT instruction", prog.Name),
		Message:    "Execution will run into zeroed memory, which decodes as HALT",
		Location:   prog.Path,
		Suggestion: "End the program with an explicit halt",
	}}
}
