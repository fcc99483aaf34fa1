// Package vm implements the thingamajig core: a 64 KiB memory, four 8-bit
// registers, and a single-step interpreter for the isa package's opcodes.
//
// A Core is not safe for concurrent use. Run honours context cancellation
// between steps, so a long-running program can be interrupted from another
// goroutine by cancelling its context.
package vm

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"github.com/harrison/thingamajig/internal/isa"
)

// MemSize is the size of the address space in bytes.
const MemSize = 0x10000

var (
	// ErrHalted is returned when stepping a core that executed HALT.
	ErrHalted = errors.New("core is halted")
	// ErrStepLimit is returned by Run when the step budget is exhausted.
	ErrStepLimit = errors.New("step limit reached")
	// ErrImageTooLarge is returned by Load for images over MemSize bytes.
	ErrImageTooLarge = errors.New("image does not fit in memory")
	// ErrBadRegister is returned for register indices outside R0..R3.
	ErrBadRegister = errors.New("no such register")
)

// StepEvent describes one executed instruction.
type StepEvent struct {
	Step  uint64          // 1-based step counter
	PC    uint16          // address the instruction was fetched from
	Instr isa.Instruction // decoded instruction including address operand
	Regs  Registers       // register file after execution
}

// Tracer observes execution. Before is called after decode and before the
// instruction takes effect; After is called once it has executed.
type Tracer interface {
	Before(ev StepEvent)
	After(ev StepEvent)
}

// Core is a single thingamajig machine.
type Core struct {
	Memory [MemSize]byte
	Regs   Registers
	Halted bool

	steps  uint64
	tracer Tracer
}

// New returns a zeroed core.
func New() *Core {
	return &Core{}
}

// SetTracer installs a tracer; nil disables tracing.
func (c *Core) SetTracer(t Tracer) {
	c.tracer = t
}

// Steps returns the number of instructions executed since the last Reset.
func (c *Core) Steps() uint64 {
	return c.steps
}

// Reset clears memory, registers and the halted flag.
func (c *Core) Reset() {
	c.Memory = [MemSize]byte{}
	c.Regs = Registers{}
	c.Halted = false
	c.steps = 0
}

// Load copies an image into memory starting at address 0.
func (c *Core) Load(data []byte) error {
	if len(data) > MemSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrImageTooLarge, len(data), MemSize)
	}
	copy(c.Memory[:], data)
	return nil
}

// Step fetches, decodes and executes one instruction.
func (c *Core) Step() error {
	if c.Halted {
		return ErrHalted
	}

	pc := c.Regs.IP
	in := isa.Decode(c.nextByte())
	if in.Op.HasAddress() {
		in.Addr = c.nextShort()
	}
	c.steps++

	ev := StepEvent{Step: c.steps, PC: pc, Instr: in}
	if c.tracer != nil {
		ev.Regs = c.Regs
		c.tracer.Before(ev)
	}

	if err := c.execute(in); err != nil {
		return fmt.Errorf("execute %s at %#04x: %w", in.Op, pc, err)
	}

	if c.tracer != nil {
		ev.Regs = c.Regs
		c.tracer.After(ev)
	}
	return nil
}

func (c *Core) execute(in isa.Instruction) error {
	r := &c.Regs
	switch in.Op {
	case isa.OpHalt:
		c.Halted = true
	case isa.OpRet:
		r.IP = r.RP
	case isa.OpShl:
		return c.unary(in.A, func(v uint8) uint8 { return v << 1 })
	case isa.OpShr:
		return c.unary(in.A, func(v uint8) uint8 { return v >> 1 })
	case isa.OpRol:
		return c.unary(in.A, func(v uint8) uint8 { return bits.RotateLeft8(v, 1) })
	case isa.OpRor:
		return c.unary(in.A, func(v uint8) uint8 { return bits.RotateLeft8(v, -1) })
	case isa.OpNot:
		return c.unary(in.A, func(v uint8) uint8 { return ^v })
	case isa.OpAnd:
		return c.binary(in.A, in.B, func(a, b uint8) uint8 { return a & b })
	case isa.OpOr:
		return c.binary(in.A, in.B, func(a, b uint8) uint8 { return a | b })
	case isa.OpXor:
		return c.binary(in.A, in.B, func(a, b uint8) uint8 { return a ^ b })
	case isa.OpJump:
		r.IP = in.Addr
	case isa.OpCall:
		r.RP = r.IP
		r.IP = in.Addr
	case isa.OpLoad:
		return r.Set(in.A, c.Memory[in.Addr])
	case isa.OpStor:
		v, err := r.Get(in.A)
		if err != nil {
			return err
		}
		c.Memory[in.Addr] = v
	case isa.OpBreq, isa.OpBrne:
		a, err := r.Get(in.A)
		if err != nil {
			return err
		}
		b, err := r.Get(in.B)
		if err != nil {
			return err
		}
		if (a == b) == (in.Op == isa.OpBreq) {
			r.IP = in.Addr
		}
	default:
		return fmt.Errorf("unknown opcode %d", in.Op)
	}
	return nil
}

func (c *Core) unary(reg uint8, f func(uint8) uint8) error {
	v, err := c.Regs.Get(reg)
	if err != nil {
		return err
	}
	return c.Regs.Set(reg, f(v))
}

func (c *Core) binary(ra, rb uint8, f func(a, b uint8) uint8) error {
	a, err := c.Regs.Get(ra)
	if err != nil {
		return err
	}
	b, err := c.Regs.Get(rb)
	if err != nil {
		return err
	}
	return c.Regs.Set(ra, f(a, b))
}

// nextByte reads the byte at IP and advances IP, wrapping at the top of memory.
func (c *Core) nextByte() byte {
	v := c.Memory[c.Regs.IP]
	c.Regs.IP++
	return v
}

func (c *Core) nextShort() uint16 {
	hi := c.nextByte()
	lo := c.nextByte()
	return uint16(hi)<<8 | uint16(lo)
}

// Run steps the core until it halts, ctx is cancelled, or maxSteps
// instructions have executed (0 means no limit). It returns the number of
// steps executed by this call.
func (c *Core) Run(ctx context.Context, maxSteps uint64) (uint64, error) {
	var n uint64
	for !c.Halted {
		if maxSteps > 0 && n >= maxSteps {
			return n, fmt.Errorf("%w after %d steps", ErrStepLimit, n)
		}
		// Poll ctx every step while tracing, otherwise every 4096 steps.
		if c.tracer != nil || n&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}
		if err := c.Step(); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
