package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ProgramExtensions are the extensions picked up when scanning directories.
var ProgramExtensions = []string{".asm", ".s", ".md", ".markdown", ".yaml", ".yml", ".bin", ".img"}

// docFiles matches documentation that shares an extension with listings.
var docFiles = regexp.MustCompile(`(?i)^(readme|changelog|license|contributing)$`)

// ScanOptions configures directory scanning
type ScanOptions struct {
	// Extensions to include; empty means ProgramExtensions
	Extensions []string
	// Recursive descends into subdirectories
	Recursive bool
	// MaxDepth limits recursion depth (0 = unlimited, 1 = top level only)
	MaxDepth int
}

// ScanResult contains the results of a scan
type ScanResult struct {
	// Files contains the absolute paths of all matched files
	Files []string
	// Errors contains non-fatal errors met while walking
	Errors []error
}

// FindPrograms expands paths into program files. A path that does not
// exist is a fatal error; unreadable entries inside a directory are
// collected in ScanResult.Errors.
func FindPrograms(paths []string, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{Files: make([]string, 0)}
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result.Files = append(result.Files, p)
		}
	}

	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", path, err)
		}
		if !info.IsDir() {
			add(abs)
			continue
		}

		files, errs := scanDirectory(abs, opts)
		for _, f := range files {
			add(f)
		}
		result.Errors = append(result.Errors, errs...)
	}

	sort.Strings(result.Files)
	return result, nil
}

func scanDirectory(dir string, opts ScanOptions) ([]string, []error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = ProgramExtensions
	}
	extMap := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extMap[strings.ToLower(ext)] = true
	}

	var files []string
	var errs []error
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				rel, _ := filepath.Rel(dir, path)
				if strings.Count(rel, string(filepath.Separator))+1 >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !extMap[ext] || strings.HasPrefix(name, ".") {
			return nil
		}
		if docFiles.MatchString(strings.TrimSuffix(name, filepath.Ext(name))) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, errs
}
