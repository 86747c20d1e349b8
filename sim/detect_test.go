package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("@r\nACGT\n+\n!!!!\n"), 0o644))
}

func TestIsSequencingFile_SuffixMatching(t *testing.T) {
	matches := []string{
		"sample.fastq", "sample.fq", "sample.fastq.gz", "sample.fq.gz", "sample.pod5",
		"sample.FASTQ", "sample.Fq.Gz", "SAMPLE.POD5",
		".fastq", // hidden file, no basename
	}
	for _, name := range matches {
		assert.True(t, IsSequencingFile(name), "expected %q to match", name)
	}

	misses := []string{"sample.fastqq", "sample.fast", "sample.gz", "sample.txt", "fastq"}
	for _, name := range misses {
		assert.False(t, IsSequencingFile(name), "expected %q not to match", name)
	}
}

func TestIsBarcodeDir_Patterns(t *testing.T) {
	for _, name := range []string{"barcode01", "barcode123", "BC05", "bc9", "unclassified", "BARCODE01", "Bc05", "UNCLASSIFIED"} {
		assert.True(t, IsBarcodeDir(name), "expected %q to match", name)
	}
	for _, name := range []string{"barcode", "bc", "sample01", "barcode_1", "unclassified2"} {
		assert.False(t, IsBarcodeDir(name), "expected %q not to match", name)
	}
}

func TestDetectStructure_Singleplex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.fastq"))
	writeFile(t, filepath.Join(dir, "b.fastq.gz"))

	structure, err := DetectStructure(dir)
	require.NoError(t, err)
	assert.Equal(t, StructureSingleplex, structure)
}

func TestDetectStructure_Multiplex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "barcode01", "x.fastq"))
	writeFile(t, filepath.Join(dir, "BC02", "y.fq.gz"))

	structure, err := DetectStructure(dir)
	require.NoError(t, err)
	assert.Equal(t, StructureMultiplex, structure)
}

func TestDetectStructure_EmptyBarcodeDirIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "barcode01"), 0o755))

	_, err := DetectStructure(dir)
	assert.ErrorIs(t, err, ErrNoSequencingData)
}

func TestDetectStructure_NonBarcodeDirIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sample01", "x.fastq"))

	_, err := DetectStructure(dir)
	assert.ErrorIs(t, err, ErrNoSequencingData)
}

func TestDetectStructure_MixedPrefersMultiplexWithOneWarning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.fastq"))
	writeFile(t, filepath.Join(dir, "barcode01", "x.fastq"))

	hook := logtest.NewGlobal()
	defer hook.Reset()

	structure, err := DetectStructure(dir)
	require.NoError(t, err)
	assert.Equal(t, StructureMultiplex, structure)

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings, "mixed structure must emit exactly one warning")
}

func TestDetectStructure_MissingDir(t *testing.T) {
	_, err := DetectStructure(filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestDetectStructure_DanglingSymlinkCounts(t *testing.T) {
	// Detection is name-based and never opens files, so a broken link
	// with a sequencing extension still counts as present.
	dir := t.TempDir()
	link := filepath.Join(dir, "ghost.fastq")
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone.fastq"), link))

	structure, err := DetectStructure(dir)
	require.NoError(t, err)
	assert.Equal(t, StructureSingleplex, structure)
}

func TestFindSequencingFiles_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.fastq"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub.fastq"), 0o755))

	files, err := findSequencingFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.fastq", filepath.Base(files[0]))
}
