package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"prog.asm", FormatAssembly},
		{"prog.S", FormatAssembly},
		{"README.md", FormatMarkdown},
		{"listing.markdown", FormatMarkdown},
		{"prog.yaml", FormatYAML},
		{"prog.yml", FormatYAML},
		{"prog.bin", FormatBinary},
		{"noext", FormatBinary},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := DetectFormat(tt.filename); got != tt.want {
				t.Errorf("DetectFormat(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	if FormatMarkdown.String() != "markdown" || FormatBinary.String() != "binary" {
		t.Errorf("unexpected format names: %s, %s", FormatMarkdown, FormatBinary)
	}
}

func TestParseFileBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "count.bin")
	if err := os.WriteFile(path, []byte{0x60, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}

	prog, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if prog.Name != "count" {
		t.Errorf("Name = %q, want count", prog.Name)
	}
	if prog.Format != "binary" {
		t.Errorf("Format = %q, want binary", prog.Format)
	}
	if !filepath.IsAbs(prog.Path) {
		t.Errorf("Path %q is not absolute", prog.Path)
	}
	if !bytes.Equal(prog.Image, []byte{0x60, 0x00}) {
		t.Errorf("Image = % x", prog.Image)
	}
}

func TestParseFileAssembly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.asm")
	if err := os.WriteFile(path, []byte("not r1\nhalt\n"), 0644); err != nil {
		t.Fatal(err)
	}

	prog, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if !bytes.Equal(prog.Image, []byte{0x64, 0x00}) {
		t.Errorf("Image = % x", prog.Image)
	}
}

func TestParseFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ParseFile(filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ParseFile(dir); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Errorf("expected directory error, got %v", err)
	}

	big := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(big, make([]byte, 0x10001), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(big); err == nil || !strings.Contains(err.Error(), "larger than") {
		t.Errorf("expected size error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.asm")
	if err := os.WriteFile(bad, []byte("jump nowhere\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile(bad)
	if err == nil || !strings.Contains(err.Error(), "bad.asm") {
		t.Errorf("expected error naming the file, got %v", err)
	}
}
