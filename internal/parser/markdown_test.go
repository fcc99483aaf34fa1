package parser

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseMarkdownListing(t *testing.T) {
	markdown := "---\n" +
		"name: invert\n" +
		"description: flips r0\n" +
		"max_steps: 50\n" +
		"---\n" +
		"# Invert\n\n" +
		"First complement the register:\n\n" +
		"```asm\n" +
		"start: not r0\n" +
		"```\n\n" +
		"A shell example that must be ignored:\n\n" +
		"```sh\n" +
		"thingamajig run invert.md\n" +
		"```\n\n" +
		"Then stop:\n\n" +
		"```thingamajig\n" +
		"halt\n" +
		"```\n"

	prog, err := NewMarkdownParser().Parse(strings.NewReader(markdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}

	if prog.Name != "invert" {
		t.Errorf("Expected name 'invert', got %q", prog.Name)
	}
	if prog.Description != "flips r0" {
		t.Errorf("Expected description 'flips r0', got %q", prog.Description)
	}
	if prog.MaxSteps != 50 {
		t.Errorf("Expected max_steps 50, got %d", prog.MaxSteps)
	}
	if !bytes.Equal(prog.Image, []byte{0x60, 0x00}) {
		t.Errorf("Expected image 60 00, got % x", prog.Image)
	}
}

func TestParseMarkdownLabelsAcrossBlocks(t *testing.T) {
	markdown := "```asm\njump end\n```\n\nprose\n\n```asm\nend: halt\n```\n"

	prog, err := NewMarkdownParser().Parse(strings.NewReader(markdown))
	if err != nil {
		t.Fatalf("Failed to parse markdown: %v", err)
	}
	if !bytes.Equal(prog.Image, []byte{0xA0, 0x00, 0x03, 0x00}) {
		t.Errorf("Expected a0 00 03 00, got % x", prog.Image)
	}
}

func TestParseMarkdownNoCode(t *testing.T) {
	_, err := NewMarkdownParser().Parse(strings.NewReader("# Nothing here\n\n```go\nfunc main() {}\n```\n"))
	if err == nil || !strings.Contains(err.Error(), "no asm code blocks") {
		t.Errorf("Expected 'no asm code blocks' error, got %v", err)
	}
}

func TestParseMarkdownAssemblyError(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine string
	}{
		{"bare block", "```asm\nfrobnicate\n```\n", "line 2:"},
		{
			"after frontmatter and prose",
			"---\nname: broken\nmax_steps: 10\n---\n# Broken\n\nSome prose.\n\n```asm\nhalt\nfrobnicate r0\n```\n",
			"line 11:",
		},
		{
			"second block",
			"```asm\nstart:\n```\n\nMore prose.\n\n```thingamajig\njump start\nfrobnicate\n```\n",
			"line 9:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMarkdownParser().Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Expected assembly error")
			}
			if !strings.Contains(err.Error(), "frobnicate") {
				t.Errorf("Expected error to mention mnemonic, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantLine) {
				t.Errorf("Expected error at %q, got %v", tt.wantLine, err)
			}
		})
	}
}

func TestExtractFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantFM   bool
		wantBody string
	}{
		{"with frontmatter", "---\nname: x\n---\nbody", true, "body"},
		{"no frontmatter", "# Title\nbody", false, "# Title\nbody"},
		{"unterminated", "---\nname: x\nbody", false, "---\nname: x\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, fm := extractFrontmatter([]byte(tt.input))
			if (fm != nil) != tt.wantFM {
				t.Errorf("frontmatter present = %v, want %v", fm != nil, tt.wantFM)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}
