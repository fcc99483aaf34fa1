package asm

import (
	"fmt"
	"strings"

	"github.com/harrison/thingamajig/internal/isa"
)

// Line is one disassembled instruction.
type Line struct {
	Addr  uint16
	Bytes []byte
	Text  string
}

// String formats the line as "ADDR: BYTES  TEXT".
func (l Line) String() string {
	hex := make([]string, len(l.Bytes))
	for i, b := range l.Bytes {
		hex[i] = fmt.Sprintf("%02x", b)
	}
	return fmt.Sprintf("%04x: %-8s  %s", l.Addr, strings.Join(hex, " "), l.Text)
}

// Disassemble decodes data as if loaded at origin. A trailing instruction
// whose address operand is cut off is rendered as .byte.
func Disassemble(data []byte, origin uint16) []Line {
	var lines []Line
	for i := 0; i < len(data); {
		addr := origin + uint16(i)
		in := isa.Decode(data[i])
		n := in.Op.Len()

		if i+n > len(data) {
			rest := data[i:]
			vals := make([]string, len(rest))
			for j, b := range rest {
				vals[j] = fmt.Sprintf("0x%02x", b)
			}
			lines = append(lines, Line{Addr: addr, Bytes: rest, Text: ".byte " + strings.Join(vals, ", ")})
			break
		}

		if in.Op.HasAddress() {
			in.Addr = uint16(data[i+1])<<8 | uint16(data[i+2])
		}
		lines = append(lines, Line{Addr: addr, Bytes: data[i : i+n], Text: in.String()})
		i += n
	}
	return lines
}
