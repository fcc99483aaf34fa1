package display

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

const bytesPerRow = 16

// HexDump writes mem[from:to] as rows of 16 bytes:
//
//	0000  c0 00 0e e1 00 0a 30 a0  00 03 d0 00 0e 00 10 00  |......0.........|
//
// Consecutive all-zero rows after the first are collapsed into "*", and a
// final line holds the end offset. The range is clamped to len(mem); from
// is rounded down to a row boundary.
func HexDump(out io.Writer, mem []byte, from, to int) {
	if to > len(mem) {
		to = len(mem)
	}
	if from < 0 {
		from = 0
	}
	from -= from % bytesPerRow

	zeroRow := make([]byte, bytesPerRow)
	skipping := false
	for addr := from; addr < to; addr += bytesPerRow {
		end := addr + bytesPerRow
		if end > to {
			end = to
		}
		row := mem[addr:end]

		if len(row) == bytesPerRow && bytes.Equal(row, zeroRow) && addr != from {
			if !skipping {
				fmt.Fprintln(out, "*")
				skipping = true
			}
			continue
		}
		skipping = false
		fmt.Fprintln(out, formatRow(addr, row))
	}
	if to > from {
		fmt.Fprintf(out, "%04x\n", to)
	}
}

func formatRow(addr int, row []byte) string {
	var hex, ascii strings.Builder
	for i := 0; i < bytesPerRow; i++ {
		if i == bytesPerRow/2 {
			hex.WriteByte(' ')
		}
		if i < len(row) {
			fmt.Fprintf(&hex, "%02x ", row[i])
			if row[i] >= 0x20 && row[i] < 0x7f {
				ascii.WriteByte(row[i])
			} else {
				ascii.WriteByte('.')
			}
		} else {
			hex.WriteString("   ")
		}
	}
	return fmt.Sprintf("%04x  %s |%s|", addr, hex.String(), ascii.String())
}
