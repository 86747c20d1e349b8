package sim

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// Structure classifies the layout of a sequencing run directory.
type Structure string

const (
	// StructureSingleplex means sequencing files sit directly in the
	// run directory.
	StructureSingleplex Structure = "singleplex"
	// StructureMultiplex means sequencing files are grouped into
	// barcode-named subdirectories.
	StructureMultiplex Structure = "multiplex"
)

// sequencingExtensions are the recognized sequencing-file suffixes.
// Compound suffixes come first so that .fastq.gz matches as a whole.
var sequencingExtensions = []string{".fastq.gz", ".fq.gz", ".fastq", ".fq", ".pod5"}

var barcodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^barcode\d+$`),
	regexp.MustCompile(`(?i)^bc\d+$`),
	regexp.MustCompile(`(?i)^unclassified$`),
}

// IsSequencingFile reports whether name carries a recognized sequencing
// extension. Matching is case-insensitive and suffix-exact; no file
// content is inspected.
func IsSequencingFile(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	for _, ext := range sequencingExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsBarcodeDir reports whether name matches one of the barcode
// directory patterns (barcodeNN, BCNN, bcNN, unclassified), case
// insensitively.
func IsBarcodeDir(name string) bool {
	for _, p := range barcodePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// DetectStructure classifies sourceDir as singleplex or multiplex.
//
// Decision table: direct files only -> singleplex; barcode dirs only ->
// multiplex; both -> multiplex with a warning; neither ->
// ErrNoSequencingData. A barcode directory only qualifies if it holds
// at least one sequencing file.
func DetectStructure(sourceDir string) (Structure, error) {
	directFiles, err := findSequencingFiles(sourceDir)
	if err != nil {
		return "", fmt.Errorf("detecting structure: %w", err)
	}
	barcodeDirs, err := findBarcodeDirs(sourceDir)
	if err != nil {
		return "", fmt.Errorf("detecting structure: %w", err)
	}

	switch {
	case len(barcodeDirs) > 0 && len(directFiles) == 0:
		return StructureMultiplex, nil
	case len(directFiles) > 0 && len(barcodeDirs) == 0:
		return StructureSingleplex, nil
	case len(directFiles) > 0 && len(barcodeDirs) > 0:
		logrus.Warn("mixed structure detected: files in both root and barcode directories")
		return StructureMultiplex, nil
	default:
		return "", fmt.Errorf("%w in %s", ErrNoSequencingData, sourceDir)
	}
}

// findSequencingFiles lists direct children of dir that are sequencing
// files, in directory order. Symlinks count by name alone; a dangling
// link with a sequencing extension is still listed, since detection
// never opens files.
func findSequencingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if IsSequencingFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// findBarcodeDirs lists direct subdirectories of dir whose names match
// a barcode pattern and which contain at least one sequencing file.
func findBarcodeDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || !IsBarcodeDir(entry.Name()) {
			continue
		}
		inner, err := findSequencingFiles(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if len(inner) > 0 {
			dirs = append(dirs, filepath.Join(dir, entry.Name()))
		}
	}
	return dirs, nil
}
