// Package asm converts between thingamajig assembly source and machine images.
//
// Source syntax, one statement per line:
//
//	; comment            # comment
//	loop:                label, may share a line with a statement
//	  load r0, counter   mnemonic and comma-separated operands
//	  brne r0, r1, loop
//	  halt
//	.org 0x100           advance the location counter (zero filled)
//	counter: .byte 3     raw bytes
//	.word 0xBEEF         big-endian 16-bit values
//
// Numbers may be decimal, 0x hex, or 0b binary. Address operands may be
// numbers or labels.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/harrison/thingamajig/internal/isa"
)

// MaxImageSize is the largest image the assembler produces.
const MaxImageSize = 0x10000

// LineError ties an assembly error to its source line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// statement is one parsed source line.
type statement struct {
	line     int
	label    string
	mnemonic string // lower-case; directives keep their leading dot
	operands []string
	addr     int
	failed   bool
}

// Assemble translates source into a machine image. All errors found are
// reported together.
func Assemble(src string) ([]byte, error) {
	stmts, errs := parse(src)

	labels, layoutErrs := layout(stmts)
	errs = append(errs, layoutErrs...)

	out, emitErrs := emit(stmts, labels)
	errs = append(errs, emitErrs...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func parse(src string) ([]*statement, []error) {
	var stmts []*statement
	var errs []error

	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		if line == "" {
			continue
		}

		st := &statement{line: lineNo}
		if idx := strings.Index(line, ":"); idx >= 0 {
			name := strings.TrimSpace(line[:idx])
			if !validLabel(name) {
				errs = append(errs, &LineError{lineNo, fmt.Errorf("invalid label %q", name)})
				continue
			}
			st.label = name
			line = strings.TrimSpace(line[idx+1:])
		}

		if line != "" {
			fields := strings.SplitN(line, " ", 2)
			st.mnemonic = strings.ToLower(strings.TrimSpace(fields[0]))
			if len(fields) == 2 {
				for _, op := range strings.Split(fields[1], ",") {
					op = strings.TrimSpace(op)
					if op == "" {
						errs = append(errs, &LineError{lineNo, errors.New("empty operand")})
						continue
					}
					st.operands = append(st.operands, op)
				}
			}
		}
		stmts = append(stmts, st)
	}
	return stmts, errs
}

func stripComment(line string) string {
	if idx := strings.IndexAny(line, ";#"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(strings.ReplaceAll(line, "\t", " "))
}

func validLabel(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return !isRegister(name)
}

func isRegister(s string) bool {
	_, err := parseRegister(s)
	return err == nil
}

// layout assigns addresses and collects label definitions.
func layout(stmts []*statement) (map[string]int, []error) {
	labels := make(map[string]int)
	var errs []error
	pc := 0

	for _, st := range stmts {
		if st.label != "" {
			if _, dup := labels[st.label]; dup {
				errs = append(errs, &LineError{st.line, fmt.Errorf("duplicate label %q", st.label)})
			} else {
				labels[st.label] = pc
			}
		}
		st.addr = pc

		size, err := sizeOf(st, pc)
		if err != nil {
			st.failed = true
			errs = append(errs, &LineError{st.line, err})
			continue
		}
		pc += size
		if pc > MaxImageSize {
			errs = append(errs, &LineError{st.line, fmt.Errorf("program exceeds %d bytes", MaxImageSize)})
			break
		}
	}
	return labels, errs
}

func sizeOf(st *statement, pc int) (int, error) {
	switch st.mnemonic {
	case "":
		return 0, nil
	case ".org":
		if len(st.operands) != 1 {
			return 0, errors.New(".org takes one address")
		}
		target, err := parseNumber(st.operands[0], 0xFFFF)
		if err != nil {
			return 0, err
		}
		if int(target) < pc {
			return 0, fmt.Errorf(".org 0x%04x moves backwards from 0x%04x", target, pc)
		}
		return int(target) - pc, nil
	case ".byte":
		if len(st.operands) == 0 {
			return 0, errors.New(".byte needs at least one value")
		}
		return len(st.operands), nil
	case ".word":
		if len(st.operands) == 0 {
			return 0, errors.New(".word needs at least one value")
		}
		return 2 * len(st.operands), nil
	}

	op, err := isa.ParseOpcode(st.mnemonic)
	if err != nil {
		return 0, err
	}
	return op.Len(), nil
}

func emit(stmts []*statement, labels map[string]int) ([]byte, []error) {
	var out []byte
	var errs []error

	for _, st := range stmts {
		if st.failed || st.mnemonic == "" || st.mnemonic == ".org" {
			continue
		}
		// pad for .org gaps
		for len(out) < st.addr {
			out = append(out, 0)
		}

		var err error
		switch st.mnemonic {
		case ".byte":
			for _, v := range st.operands {
				var n uint16
				if n, err = parseNumber(v, 0xFF); err != nil {
					break
				}
				out = append(out, byte(n))
			}
		case ".word":
			for _, v := range st.operands {
				var n uint16
				if n, err = resolveAddress(v, labels); err != nil {
					break
				}
				out = append(out, byte(n>>8), byte(n))
			}
		default:
			var in isa.Instruction
			if in, err = encodeInstruction(st, labels); err == nil {
				out = append(out, in.Encode()...)
			}
		}
		if err != nil {
			errs = append(errs, &LineError{st.line, err})
		}
	}
	return out, errs
}

func encodeInstruction(st *statement, labels map[string]int) (isa.Instruction, error) {
	op, err := isa.ParseOpcode(st.mnemonic)
	if err != nil {
		return isa.Instruction{}, err
	}
	in := isa.Instruction{Op: op}

	want := map[isa.Shape]int{
		isa.ShapeNone: 0, isa.ShapeA: 1, isa.ShapeAB: 2,
		isa.ShapeAddr: 1, isa.ShapeAAddr: 2, isa.ShapeABAddr: 3,
	}[op.Shape()]
	if len(st.operands) != want {
		return in, fmt.Errorf("%s expects %d operand(s), got %d", st.mnemonic, want, len(st.operands))
	}

	ops := st.operands
	switch op.Shape() {
	case isa.ShapeA:
		in.A, err = parseRegister(ops[0])
	case isa.ShapeAB:
		if in.A, err = parseRegister(ops[0]); err == nil {
			in.B, err = parseRegister(ops[1])
		}
	case isa.ShapeAddr:
		in.Addr, err = resolveAddress(ops[0], labels)
	case isa.ShapeAAddr:
		if in.A, err = parseRegister(ops[0]); err == nil {
			in.Addr, err = resolveAddress(ops[1], labels)
		}
	case isa.ShapeABAddr:
		if in.A, err = parseRegister(ops[0]); err == nil {
			if in.B, err = parseRegister(ops[1]); err == nil {
				in.Addr, err = resolveAddress(ops[2], labels)
			}
		}
	}
	return in, err
}

func parseRegister(s string) (uint8, error) {
	s = strings.ToLower(s)
	if len(s) == 2 && s[0] == 'r' && s[1] >= '0' && s[1] < '0'+isa.NumRegisters {
		return s[1] - '0', nil
	}
	return 0, fmt.Errorf("invalid register %q", s)
}

func resolveAddress(s string, labels map[string]int) (uint16, error) {
	if addr, ok := labels[s]; ok {
		return uint16(addr), nil
	}
	if s != "" && (unicode.IsDigit(rune(s[0])) || s[0] == '-') {
		return parseNumber(s, 0xFFFF)
	}
	return 0, fmt.Errorf("undefined label %q", s)
}

func parseNumber(s string, limit uint64) (uint16, error) {
	lower := strings.ToLower(s)
	base := 10
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, lower = 16, lower[2:]
	case strings.HasPrefix(lower, "0b"):
		base, lower = 2, lower[2:]
	}
	n, err := strconv.ParseUint(lower, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if n > limit {
		return 0, fmt.Errorf("value %s out of range (max %#x)", s, limit)
	}
	return uint16(n), nil
}
