package asm

import (
	"errors"
	"strings"
	"testing"

	"github.com/harrison/thingamajig/internal/isa"
)

func TestAssembleBasic(t *testing.T) {
	src := `
; count r0 down to r1
start:  load r0, value     # r0 = *value
loop:   breq r0, r1, done
        shr r0
        jump loop
done:   stor r0, value
        halt
value:  .byte 0x10
`
	got, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []byte{
		0xC0, 0x00, 0x0E, // 0x00 load r0, value
		0xE1, 0x00, 0x0A, // 0x03 breq r0, r1, done
		0x30,             // 0x06 shr r0
		0xA0, 0x00, 0x03, // 0x07 jump loop
		0xD0, 0x00, 0x0E, // 0x0a stor r0, value
		0x00,             // 0x0d halt
		0x10,             // 0x0e value
	}
	if string(got) != string(want) {
		t.Errorf("Assemble() =\n% x\nwant\n% x", got, want)
	}
}

func TestAssembleDirectives(t *testing.T) {
	src := `
    jump main
.org 0x0008
data: .byte 1, 0b10, 0x03
      .word 0xBEEF, main
main: halt
`
	got, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(got) != 16 {
		t.Fatalf("len = %d, want 16: % x", len(got), got)
	}
	if got[0] != 0xA0 || got[1] != 0x00 || got[2] != 0x0F {
		t.Errorf("jump main encoded as % x", got[:3])
	}
	for i := 3; i < 8; i++ {
		if got[i] != 0 {
			t.Errorf("gap byte %d = %#x, want 0", i, got[i])
		}
	}
	if got[8] != 1 || got[9] != 2 || got[10] != 3 {
		t.Errorf(".byte = % x", got[8:11])
	}
	if got[11] != 0xBE || got[12] != 0xEF || got[13] != 0x00 || got[14] != 0x0F {
		t.Errorf(".word = % x", got[11:15])
	}
}

func TestAssembleCaseInsensitive(t *testing.T) {
	got, err := Assemble("XOR R1, R2\nHalt")
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	want := isa.Instruction{Op: isa.OpXor, A: 1, B: 2}.Byte()
	if got[0] != want || got[1] != 0x00 {
		t.Errorf("got % x", got)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"unknown mnemonic", "mov r0, r1", `unknown mnemonic "mov"`},
		{"bad register", "not r4", `invalid register "r4"`},
		{"operand count", "and r0", "expects 2 operand(s), got 1"},
		{"undefined label", "jump nowhere", `undefined label "nowhere"`},
		{"duplicate label", "a: halt\na: halt", `duplicate label "a"`},
		{"byte range", ".byte 256", "out of range"},
		{"org backwards", ".org 4\n.org 2", "moves backwards"},
		{"register label", "r1: halt", "invalid label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestAssembleReportsAllLines(t *testing.T) {
	_, err := Assemble("halt\nbogus\nnot r9\n")
	if err == nil {
		t.Fatal("expected error")
	}

	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("error %v does not wrap *LineError", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "line 2:") || !strings.Contains(msg, "line 3:") {
		t.Errorf("error = %q, want both line 2 and line 3", msg)
	}
}

func TestAssembleTooLarge(t *testing.T) {
	_, err := Assemble(".org 0xFFFF\n.byte 1, 2")
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error = %v, want size error", err)
	}
}

func TestDisassemble(t *testing.T) {
	data := []byte{0xC4, 0x01, 0x00, 0x76, 0x00, 0xB0, 0x12}
	lines := Disassemble(data, 0x0200)

	want := []string{
		"0200: c4 01 00  load r1, 0x0100",
		"0203: 76        and r1, r2",
		"0204: 00        halt",
		"0205: b0 12     .byte 0xb0, 0x12",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, l := range lines {
		if l.String() != want[i] {
			t.Errorf("line %d = %q, want %q", i, l.String(), want[i])
		}
	}
}

func TestAssembleDisassembleAgree(t *testing.T) {
	src := "rol r3\nror r2\ncall 0x1234\nret\nbrne r0, r3, 0x0001\nor r1, r1\nhalt\n"
	img, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	var texts []string
	for _, l := range Disassemble(img, 0) {
		texts = append(texts, l.Text)
	}
	got := strings.Join(texts, "\n") + "\n"
	want := "rol r3\nror r2\ncall 0x1234\nret\nbrne r0, r3, 0x0001\nor r1, r1\nhalt\n"
	if got != want {
		t.Errorf("round trip =\n%s\nwant\n%s", got, want)
	}
}
