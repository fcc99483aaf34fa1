package cmd

import (
	"fmt"

	"github.com/harrison/thingamajig/internal/asm"
	"github.com/harrison/thingamajig/internal/display"
	"github.com/harrison/thingamajig/internal/parser"
	"github.com/spf13/cobra"
)

// NewDisasmCommand creates the disasm command
func NewDisasmCommand() *cobra.Command {
	var hexdump bool

	cmd := &cobra.Command{
		Use:   "disasm <program>",
		Short: "Disassemble a program image",
		Long: `Print the instructions of a program image, one per line:

  0000: c0 00 0e  load r0, 0x000e

Any program format is accepted; sources are assembled first. Use --hex
for a hexdump instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := parser.ParseFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if hexdump {
				display.HexDump(out, prog.Image, 0, prog.Size())
				return nil
			}
			for _, line := range asm.Disassemble(prog.Image, 0) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hexdump, "hex", false, "Print a hexdump instead of instructions")

	return cmd
}
