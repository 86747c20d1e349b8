package sim

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// PipelineAdapter describes what a downstream analysis pipeline expects
// to find in a delivery directory. Adapters validate a materialized
// target tree only; they never couple to the executor.
type PipelineAdapter struct {
	Name        string
	Description string
	// Patterns are glob-like file patterns; a leading "**/" matches at
	// any depth, otherwise the pattern applies to top-level entries.
	Patterns []string
	// RequiredStructure pins the layout, or is empty for flexible.
	RequiredStructure Structure
	// MetadataFiles must exist at the target root.
	MetadataFiles []string
}

// ValidationReport is the outcome of checking a target tree against a
// pipeline's expectations.
type ValidationReport struct {
	Pipeline       string
	Valid          bool
	StructureValid bool
	FilesFound     []string
	MissingFiles   []string
	Warnings       []string
	Errors         []string
}

var builtinAdapters = map[string]PipelineAdapter{
	"nanometanf": {
		Name:        "nanometanf",
		Description: "Real-time nanopore metagenomics pipeline",
		Patterns:    []string{"**/*.fastq", "**/*.fq", "**/*.fastq.gz", "**/*.fq.gz", "**/*.pod5"},
	},
	"kraken": {
		Name:        "kraken",
		Description: "Taxonomic classification pipeline",
		Patterns:    []string{"**/*.fastq", "**/*.fq", "**/*.fastq.gz", "**/*.fq.gz"},
	},
	"generic": {
		Name:        "generic",
		Description: "Any pipeline consuming FASTQ files",
		Patterns:    []string{"**/*.fastq", "**/*.fq"},
	},
}

// GetAdapter looks up a built-in pipeline adapter by name.
func GetAdapter(name string) (PipelineAdapter, bool) {
	a, ok := builtinAdapters[name]
	return a, ok
}

// AdapterNames lists built-in adapters in sorted order.
func AdapterNames() []string {
	names := make([]string, 0, len(builtinAdapters))
	for name := range builtinAdapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks targetDir against the adapter's expectations and
// returns a detailed report. Validation is read-only.
func (a PipelineAdapter) Validate(targetDir string) ValidationReport {
	report := ValidationReport{Pipeline: a.Name}

	info, err := os.Stat(targetDir)
	if err != nil || !info.IsDir() {
		report.Errors = append(report.Errors, "target directory does not exist")
		return report
	}

	found, err := a.matchFiles(targetDir)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.FilesFound = found
	if len(found) == 0 {
		report.Warnings = append(report.Warnings, "no files matched the expected patterns")
	}

	report.StructureValid = a.validateStructure(targetDir)

	for _, meta := range a.MetadataFiles {
		if _, err := os.Stat(filepath.Join(targetDir, meta)); err != nil {
			report.MissingFiles = append(report.MissingFiles, meta)
		}
	}

	report.Valid = report.StructureValid && len(found) > 0 && len(report.MissingFiles) == 0
	return report
}

// validateStructure checks the layout requirement, if any. Flexible
// adapters accept anything DetectStructure recognizes.
func (a PipelineAdapter) validateStructure(targetDir string) bool {
	structure, err := DetectStructure(targetDir)
	if err != nil {
		return false
	}
	if a.RequiredStructure == "" {
		return true
	}
	return structure == a.RequiredStructure
}

// matchFiles walks targetDir and collects relative paths matching any
// pattern.
func (a PipelineAdapter) matchFiles(targetDir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(targetDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(targetDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range a.Patterns {
			if matchPattern(pattern, rel) {
				found = append(found, rel)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// matchPattern matches one glob-like pattern against a slash-separated
// relative path. "**/x" patterns match x at any depth, including the
// root; plain patterns match top-level entries only. Compound suffixes
// like "*.fastq.gz" are matched by suffix, since path.Match treats "."
// literally but "*" won't cross the extra dot boundary as users expect.
func matchPattern(pattern, rel string) bool {
	base := path.Base(rel)
	if after, ok := strings.CutPrefix(pattern, "**/"); ok {
		if strings.HasPrefix(after, "*.") {
			return strings.HasSuffix(strings.ToLower(base), strings.ToLower(after[1:]))
		}
		ok, err := path.Match(after, base)
		return err == nil && ok
	}
	if strings.Contains(rel, "/") {
		return false
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(strings.ToLower(base), strings.ToLower(pattern[1:]))
	}
	ok, err := path.Match(pattern, rel)
	return err == nil && ok
}
