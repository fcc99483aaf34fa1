package parser

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/thingamajig/internal/asm"
	"github.com/harrison/thingamajig/internal/models"
)

// YAMLParser reads program manifests:
//
//	name: blink
//	max_steps: 1000
//	source: |          # inline assembly, or
//	include: blink.asm # a file parsed by its own extension
//	patches:
//	  - at: 0x0100
//	    bytes: "de ad"
type YAMLParser struct {
	baseDir string
}

type yamlManifest struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	MaxSteps    uint64      `yaml:"max_steps"`
	Source      string      `yaml:"source"`
	Include     string      `yaml:"include"`
	Patches     []yamlPatch `yaml:"patches"`
}

type yamlPatch struct {
	At    uint16 `yaml:"at"`
	Bytes string `yaml:"bytes"`
}

// NewYAMLParser creates a manifest parser resolving includes against baseDir
func NewYAMLParser(baseDir string) *YAMLParser {
	return &YAMLParser{baseDir: baseDir}
}

func (p *YAMLParser) Parse(r io.Reader) (*models.Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var m yamlManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	var image []byte
	switch {
	case m.Source != "" && m.Include != "":
		return nil, fmt.Errorf("manifest sets both source and include")
	case m.Source == "" && m.Include == "":
		return nil, fmt.Errorf("manifest needs source or include")
	case m.Source != "":
		if image, err = asm.Assemble(m.Source); err != nil {
			return nil, err
		}
	case m.Include != "":
		if image, err = p.loadInclude(m.Include); err != nil {
			return nil, err
		}
	}

	for i, patch := range m.Patches {
		raw, err := hex.DecodeString(strings.Join(strings.Fields(patch.Bytes), ""))
		if err != nil {
			return nil, fmt.Errorf("patch %d: invalid hex bytes: %w", i, err)
		}
		end := int(patch.At) + len(raw)
		if end > asm.MaxImageSize {
			return nil, fmt.Errorf("patch %d: ends past the address space", i)
		}
		if end > len(image) {
			image = append(image, make([]byte, end-len(image))...)
		}
		copy(image[patch.At:], raw)
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("manifest produces an empty image")
	}

	return &models.Program{
		Name:        m.Name,
		Description: m.Description,
		MaxSteps:    m.MaxSteps,
		Image:       image,
	}, nil
}

func (p *YAMLParser) loadInclude(include string) ([]byte, error) {
	path := include
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.baseDir, path)
	}
	format := DetectFormat(path)
	if format == FormatYAML {
		return nil, fmt.Errorf("include %s: manifests cannot include manifests", include)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("include %s: %w", include, err)
	}
	defer file.Close()

	inner, err := NewParser(format, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	prog, err := inner.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("include %s: %w", include, err)
	}
	return prog.Image, nil
}
