package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/thingamajig/internal/asm"
	"github.com/harrison/thingamajig/internal/models"
)

// Format represents the format of a program file
type Format int

const (
	// FormatBinary represents a raw machine image (.bin, .rom, anything unrecognised)
	FormatBinary Format = iota
	// FormatAssembly represents assembly source (.asm, .s)
	FormatAssembly
	// FormatMarkdown represents a Markdown (.md, .markdown) listing with asm code blocks
	FormatMarkdown
	// FormatYAML represents a YAML (.yaml, .yml) program manifest
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatAssembly:
		return models.FormatAssembly
	case FormatMarkdown:
		return models.FormatMarkdown
	case FormatYAML:
		return models.FormatYAML
	default:
		return models.FormatBinary
	}
}

// Parser is the interface that all program parsers must implement
type Parser interface {
	// Parse reads from an io.Reader and returns a parsed Program
	Parse(r io.Reader) (*models.Program, error)
}

// DetectFormat detects the program format based on file extension
// Supported extensions:
//   - .asm, .s -> FormatAssembly
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml -> FormatYAML
//   - all others -> FormatBinary
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".asm", ".s":
		return FormatAssembly
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatBinary
	}
}

// NewParser creates a new parser instance for the specified format.
// baseDir resolves relative paths referenced by YAML manifests.
func NewParser(format Format, baseDir string) (Parser, error) {
	switch format {
	case FormatBinary:
		return &BinaryParser{}, nil
	case FormatAssembly:
		return &AssemblyParser{}, nil
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(baseDir), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile detects the format of path, parses it, and fills in Path,
// Format and a default Name.
func ParseFile(path string) (*models.Program, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	format := DetectFormat(path)
	p, err := NewParser(format, filepath.Dir(absPath))
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	prog, err := p.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	prog.Path = absPath
	prog.Format = format.String()
	if prog.Name == "" {
		prog.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return prog, nil
}

// BinaryParser reads a raw machine image
type BinaryParser struct{}

// Parse reads the whole stream as the image
func (p *BinaryParser) Parse(r io.Reader) (*models.Program, error) {
	data, err := readLimited(r)
	if err != nil {
		return nil, err
	}
	return &models.Program{Image: data}, nil
}

// AssemblyParser assembles source text
type AssemblyParser struct{}

// Parse assembles the whole stream
func (p *AssemblyParser) Parse(r io.Reader) (*models.Program, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	image, err := asm.Assemble(string(src))
	if err != nil {
		return nil, err
	}
	return &models.Program{Image: image}, nil
}

// readLimited reads at most one byte past the address space so oversize
// images are rejected without reading them fully.
func readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, asm.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if n > asm.MaxImageSize {
		return nil, fmt.Errorf("image larger than %d bytes", asm.MaxImageSize)
	}
	return buf.Bytes(), nil
}
