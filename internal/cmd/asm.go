package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harrison/thingamajig/internal/filelock"
	"github.com/harrison/thingamajig/internal/parser"
	"github.com/spf13/cobra"
)

// NewAsmCommand creates the asm command
func NewAsmCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "asm <source>",
		Short: "Assemble a program into a raw image",
		Long: `Assemble a program and write the machine image.

The source may be an .asm file, a Markdown listing or a YAML manifest.
The image is written atomically under a file lock, so concurrent
assemblies of the same target never produce a torn file.

Examples:
  thingamajig asm countdown.asm                # writes countdown.bin
  thingamajig asm -o build/boot.bin boot.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsm(cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output image path (default: <source>.bin)")

	return cmd
}

func runAsm(cmd *cobra.Command, source, output string) error {
	prog, err := parser.ParseFile(source)
	if err != nil {
		return err
	}
	if prog.Size() == 0 {
		return fmt.Errorf("%s assembles to an empty image", source)
	}

	if output == "" {
		output = strings.TrimSuffix(source, filepath.Ext(source)) + ".bin"
	}
	if sameFile(source, output) {
		return fmt.Errorf("output %s would overwrite the source", output)
	}

	if err := filelock.LockAndWrite(cmd.Context(), output, prog.Image, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", prog.Size(), output)
	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
