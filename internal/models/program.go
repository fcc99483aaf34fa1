package models

// Program formats
const (
	FormatBinary   = "binary"
	FormatAssembly = "assembly"
	FormatMarkdown = "markdown"
	FormatYAML     = "yaml"
)

// Program represents a loadable program image with its source metadata
type Program struct {
	Name        string // Program name (front matter, manifest, or file base name)
	Description string // Optional free-form description
	Path        string // Absolute path of the source file
	Format      string // One of the Format* constants
	Image       []byte // Machine image loaded at address 0
	MaxSteps    uint64 // Step budget requested by the program (0 = use config)
}

// Size returns the image size in bytes
func (p *Program) Size() int {
	return len(p.Image)
}
