package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/thingamajig/internal/asm"
	"github.com/harrison/thingamajig/internal/models"
)

// codeLanguages are the fenced code block info strings that hold program source
var codeLanguages = map[string]bool{
	"asm":         true,
	"thingamajig": true,
}

// programFrontmatter represents the optional YAML frontmatter of a listing
type programFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	MaxSteps    uint64 `yaml:"max_steps"`
}

// MarkdownParser assembles the asm code blocks of a Markdown document in
// document order. Prose and other code blocks are ignored.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

func (p *MarkdownParser) Parse(r io.Reader) (*models.Program, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	prog := &models.Program{}
	raw := content
	content, frontmatter := extractFrontmatter(content)
	// lines consumed by the front matter, so errors point into the file
	skipped := bytes.Count(raw[:len(raw)-len(content)], []byte("\n"))
	if frontmatter != nil {
		var fm programFrontmatter
		if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		prog.Name = fm.Name
		prog.Description = fm.Description
		prog.MaxSteps = fm.MaxSteps
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))
	src, blocks := extractSource(doc, content, skipped)
	if blocks == 0 {
		return nil, fmt.Errorf("no asm code blocks found")
	}

	image, err := asm.Assemble(src)
	if err != nil {
		return nil, err
	}
	prog.Image = image
	return prog, nil
}

// extractSource concatenates the program code blocks and returns the
// combined source with the number of blocks found. Blank lines pad each
// block out to its position in the document, offset by lineOffset, so
// assembler line numbers match the original file.
func extractSource(doc ast.Node, source []byte, lineOffset int) (string, int) {
	var sb strings.Builder
	blocks := 0
	line := 1

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(block.Language(source)))
		if !codeLanguages[lang] {
			return ast.WalkSkipChildren, nil
		}

		blocks++
		lines := block.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		start := lineOffset + bytes.Count(source[:lines.At(0).Start], []byte("\n")) + 1
		for ; line < start; line++ {
			sb.WriteByte('\n')
		}
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			value := seg.Value(source)
			sb.Write(value)
			if len(value) == 0 || value[len(value)-1] != '\n' {
				sb.WriteByte('\n')
			}
			line++
		}
		return ast.WalkSkipChildren, nil
	})

	return sb.String(), blocks
}

// extractFrontmatter splits a leading "---" delimited block from content
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	// No closing delimiter found
	return content, nil
}
