package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/harrison/thingamajig/internal/isa"
	"github.com/harrison/thingamajig/internal/vm"
)

// StepTracer prints every executed instruction in the classic trace format:
//
//	OP=12 A=0 B=0
//	REGS: Registers { ip: 3, rp: 0, r0: ab, r1: 0, r2: 0, r3: 0 }
//
// With Annotate set the OP line also carries the fetch address and the
// disassembled instruction. It implements vm.Tracer.
type StepTracer struct {
	writer      io.Writer
	colorOutput bool
	annotate    bool
	mu          sync.Mutex
}

// NewStepTracer creates a tracer writing to w.
func NewStepTracer(w io.Writer, colorOutput bool, annotate bool) *StepTracer {
	return &StepTracer{writer: w, colorOutput: colorOutput, annotate: annotate}
}

// Before prints the decoded instruction fields.
func (t *StepTracer) Before(ev vm.StepEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	line := fmt.Sprintf("OP=%d A=%d B=%d", ev.Instr.Op, ev.Instr.A, ev.Instr.B)
	if t.annotate {
		note := fmt.Sprintf("[%04x] %s", ev.PC, ev.Instr)
		if t.colorOutput {
			note = color.New(color.FgHiBlack).Sprint(note)
		}
		line = fmt.Sprintf("%-16s %s", line, note)
	}
	fmt.Fprintln(t.writer, line)
}

// After prints the register file, highlighting registers the step changed.
func (t *StepTracer) After(ev vm.StepEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.colorOutput {
		fmt.Fprintf(t.writer, "REGS: %s\n", ev.Regs)
		return
	}

	scheme := newColorScheme()
	fields := []string{
		fmt.Sprintf("ip: %x", ev.Regs.IP),
		fmt.Sprintf("rp: %x", ev.Regs.RP),
	}
	for i, v := range ev.Regs.R {
		f := fmt.Sprintf("r%d: %x", i, v)
		if writesRegister(ev, uint8(i)) {
			f = scheme.warn.Sprint(f)
		}
		fields = append(fields, f)
	}
	fmt.Fprintf(t.writer, "%s Registers { %s }\n", scheme.label.Sprint("REGS:"), strings.Join(fields, ", "))
}

// writesRegister reports whether the instruction in ev targets register r.
func writesRegister(ev vm.StepEvent, r uint8) bool {
	switch op := ev.Instr.Op; {
	case op >= isa.OpShl && op <= isa.OpXor, op == isa.OpLoad:
		return ev.Instr.A == r
	}
	return false
}
