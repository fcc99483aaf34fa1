// Package display renders machine state and user-facing warnings for the
// thingamajig CLI.
//
// # Registers
//
//	display.RegisterTable(os.Stdout, models.RegisterSnapshot{
//	    IP: core.Regs.IP, RP: core.Regs.RP, R: core.Regs.R,
//	})
//
// prints one aligned row per register in hex and decimal.
//
// # Memory
//
//	display.HexDump(os.Stdout, core.Memory[:], 0x0000, 0x0100)
//
// prints 16 bytes per row with an ASCII gutter. Runs of all-zero rows are
// collapsed into a single "*" line and the end offset closes the dump, like
// hexdump(1).
//
// # Warnings
//
//	display.Warning{
//	    Title:      "Program never halts",
//	    Message:    "no HALT instruction was found",
//	    Suggestion: "end the program with halt",
//	}.Display(os.Stderr)
//
// Colors go through fatih/color and follow its global NoColor switch.
package display
