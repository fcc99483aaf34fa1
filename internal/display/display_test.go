package display

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/harrison/thingamajig/internal/models"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestHexDump(t *testing.T) {
	mem := make([]byte, 0x60)
	copy(mem, []byte("Hi\x00\xff"))
	mem[0x50] = 0x41

	var buf bytes.Buffer
	HexDump(&buf, mem, 0, len(mem))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"0000  48 69 00 ff 00 00 00 00  00 00 00 00 00 00 00 00  |Hi..............|",
		"*",
		"0050  41 00 00 00 00 00 00 00  00 00 00 00 00 00 00 00  |A...............|",
		"0060",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d =\n%q\nwant\n%q", i, lines[i], want[i])
		}
	}
}

func TestHexDumpPartialRowAndClamp(t *testing.T) {
	mem := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}

	var buf bytes.Buffer
	HexDump(&buf, mem, 3, 1000)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "0000  01 02") {
		t.Errorf("from should round down to the row start: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0010  11 12    ") || !strings.HasSuffix(lines[1], "|..|") {
		t.Errorf("unexpected partial row: %q", lines[1])
	}
	if lines[2] != "0012" {
		t.Errorf("end offset = %q, want clamped length 0012", lines[2])
	}
}

func TestHexDumpTrailingZeros(t *testing.T) {
	mem := make([]byte, 0x10000)
	copy(mem, []byte{0x60, 0x00})

	var buf bytes.Buffer
	HexDump(&buf, mem, 0, len(mem))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[1] != "*" {
		t.Errorf("zero rows not collapsed: %q", lines[1])
	}
	if lines[2] != "10000" {
		t.Errorf("end offset = %q, want 10000", lines[2])
	}
}

func TestRegisterTable(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	RegisterTable(&buf, models.RegisterSnapshot{IP: 0x0102, RP: 3, R: [4]uint8{0xff, 0, 16, 1}})

	out := buf.String()
	for _, want := range []string{"REG", "ip   0102  258", "rp   0003  3", "r0   ff    255", "r2   10    16"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRegisterTableColoredHeaderAligned(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	RegisterTable(&buf, models.RegisterSnapshot{IP: 0x0102})

	lines := strings.Split(buf.String(), "\n")
	if !strings.Contains(lines[0], "\x1b[") {
		t.Fatalf("header not colored: %q", lines[0])
	}
	header := ansiEscape.ReplaceAllString(lines[0], "")
	if strings.Index(header, "HEX") != strings.Index(lines[1], "0102") {
		t.Errorf("header misaligned:\n%s\n%s", header, lines[1])
	}
	if strings.Index(header, "DEC") != strings.Index(lines[1], "258") {
		t.Errorf("header misaligned:\n%s\n%s", header, lines[1])
	}
}

func TestWarningDisplay(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	Warning{
		Title:      "Program never halts",
		Message:    "no HALT instruction reachable",
		Location:   "loop.asm",
		Suggestion: "add halt",
	}.Display(&buf)

	want := "Warning: Program never halts\n" +
		"    no HALT instruction reachable\n" +
		"    At: loop.asm\n" +
		"    Suggestion: add halt\n"
	if buf.String() != want {
		t.Errorf("Display() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWarningDisplayMinimal(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	Warning{Title: "Empty image"}.Display(&buf)
	if buf.String() != "Warning: Empty image\n" {
		t.Errorf("Display() = %q", buf.String())
	}
}
