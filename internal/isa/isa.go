// Package isa defines the thingamajig instruction set: the opcode table,
// instruction byte layout, and the operand shape of every opcode.
//
// An instruction byte is laid out as:
//
//	7   4 3  2 1  0
//	[ op ] [ A ] [ B ]
//
// Opcodes JUMP and above are followed by a 16-bit big-endian address.
package isa

import (
	"fmt"
	"strings"
)

// Opcode is the 4-bit operation selector held in the high nibble.
type Opcode uint8

const (
	OpHalt Opcode = 0x0
	OpRet  Opcode = 0x1
	OpShl  Opcode = 0x2
	OpShr  Opcode = 0x3
	OpRol  Opcode = 0x4
	OpRor  Opcode = 0x5
	OpNot  Opcode = 0x6
	OpAnd  Opcode = 0x7
	OpOr   Opcode = 0x8
	OpXor  Opcode = 0x9
	OpJump Opcode = 0xA
	OpCall Opcode = 0xB
	OpLoad Opcode = 0xC
	OpStor Opcode = 0xD
	OpBreq Opcode = 0xE
	OpBrne Opcode = 0xF
)

// NumRegisters is the number of general purpose registers (R0..R3).
const NumRegisters = 4

// Shape describes which operands an opcode takes in assembly syntax.
type Shape int

const (
	// ShapeNone takes no operands (HALT, RET).
	ShapeNone Shape = iota
	// ShapeA takes a single register (SHL r0).
	ShapeA
	// ShapeAB takes two registers (AND r0, r1).
	ShapeAB
	// ShapeAddr takes an address (JUMP label).
	ShapeAddr
	// ShapeAAddr takes a register and an address (LOAD r0, 0x100).
	ShapeAAddr
	// ShapeABAddr takes two registers and an address (BREQ r0, r1, loop).
	ShapeABAddr
)

var mnemonics = [16]string{
	"HALT", "RET", "SHL", "SHR", "ROL", "ROR", "NOT", "AND",
	"OR", "XOR", "JUMP", "CALL", "LOAD", "STOR", "BREQ", "BRNE",
}

var shapes = [16]Shape{
	ShapeNone, ShapeNone, ShapeA, ShapeA, ShapeA, ShapeA, ShapeA, ShapeAB,
	ShapeAB, ShapeAB, ShapeAddr, ShapeAddr, ShapeAAddr, ShapeAAddr, ShapeABAddr, ShapeABAddr,
}

// String returns the upper-case mnemonic.
func (op Opcode) String() string {
	if int(op) < len(mnemonics) {
		return mnemonics[op]
	}
	return fmt.Sprintf("OP(%#x)", uint8(op))
}

// HasAddress reports whether the opcode is followed by an address operand.
func (op Opcode) HasAddress() bool {
	return op >= OpJump
}

// Shape returns the operand shape used by the assembler.
func (op Opcode) Shape() Shape {
	return shapes[op&0xF]
}

// Len returns the encoded instruction length in bytes.
func (op Opcode) Len() int {
	if op.HasAddress() {
		return 3
	}
	return 1
}

// ParseOpcode resolves a mnemonic, case-insensitively.
func ParseOpcode(s string) (Opcode, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, m := range mnemonics {
		if m == upper {
			return Opcode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mnemonic %q", s)
}

// Instruction is a decoded instruction. Addr is meaningful only when
// Op.HasAddress() is true.
type Instruction struct {
	Op   Opcode
	A    uint8
	B    uint8
	Addr uint16
}

// Decode splits an instruction byte into opcode and register fields.
// The address operand, if any, is fetched separately by the caller.
func Decode(b byte) Instruction {
	return Instruction{
		Op: Opcode((b >> 4) & 0xF),
		A:  (b >> 2) & 0x3,
		B:  b & 0x3,
	}
}

// Byte returns the leading instruction byte.
func (in Instruction) Byte() byte {
	return byte(in.Op&0xF)<<4 | (in.A&0x3)<<2 | in.B&0x3
}

// Encode returns the full encoding, including the big-endian address.
func (in Instruction) Encode() []byte {
	if !in.Op.HasAddress() {
		return []byte{in.Byte()}
	}
	return []byte{in.Byte(), byte(in.Addr >> 8), byte(in.Addr)}
}

// String renders the instruction in assembler syntax.
func (in Instruction) String() string {
	name := strings.ToLower(in.Op.String())
	switch in.Op.Shape() {
	case ShapeA:
		return fmt.Sprintf("%s r%d", name, in.A)
	case ShapeAB:
		return fmt.Sprintf("%s r%d, r%d", name, in.A, in.B)
	case ShapeAddr:
		return fmt.Sprintf("%s 0x%04x", name, in.Addr)
	case ShapeAAddr:
		return fmt.Sprintf("%s r%d, 0x%04x", name, in.A, in.Addr)
	case ShapeABAddr:
		return fmt.Sprintf("%s r%d, r%d, 0x%04x", name, in.A, in.B, in.Addr)
	default:
		return name
	}
}
