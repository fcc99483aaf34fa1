package vm

import (
	"fmt"

	"github.com/harrison/thingamajig/internal/isa"
)

// Registers is the machine register file.
type Registers struct {
	IP uint16 // instruction pointer
	RP uint16 // return pointer, written by CALL
	R  [isa.NumRegisters]uint8
}

// Get returns general purpose register r.
func (r *Registers) Get(reg uint8) (uint8, error) {
	if int(reg) >= isa.NumRegisters {
		return 0, fmt.Errorf("%w: r%d", ErrBadRegister, reg)
	}
	return r.R[reg], nil
}

// Set writes general purpose register r.
func (r *Registers) Set(reg uint8, value uint8) error {
	if int(reg) >= isa.NumRegisters {
		return fmt.Errorf("%w: r%d", ErrBadRegister, reg)
	}
	r.R[reg] = value
	return nil
}

// String renders the register file in hex.
func (r Registers) String() string {
	return fmt.Sprintf("Registers { ip: %x, rp: %x, r0: %x, r1: %x, r2: %x, r3: %x }",
		r.IP, r.RP, r.R[0], r.R[1], r.R[2], r.R[3])
}
