package sim

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Read is one synthetic sequencing read in FASTQ terms.
type Read struct {
	ID       string
	Sequence string
	Quality  string
}

// GenomeSequence parses a FASTA file and returns the concatenated,
// upper-cased sequence of all its records.
func GenomeSequence(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	sawHeader := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			sawHeader = true
			continue
		}
		if strings.HasPrefix(line, ";") {
			continue
		}
		sb.WriteString(strings.ToUpper(line))
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if !sawHeader || sb.Len() == 0 {
		return "", fmt.Errorf("%s: not a FASTA file or empty", path)
	}
	return sb.String(), nil
}

// WriteReads writes reads to path in FASTQ format, gzip-compressed when
// the path ends in .gz.
func WriteReads(path string, reads []Read) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	bw := bufio.NewWriter(w)

	for _, r := range reads {
		if _, err := fmt.Fprintf(bw, "@%s\n%s\n+\n%s\n", r.ID, r.Sequence, r.Quality); err != nil {
			f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// ReadFASTQ parses path (optionally gzipped) back into reads. Used by
// tests and by adapter validation.
func ReadFASTQ(path string) ([]Read, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	var reads []Read
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		header := scanner.Text()
		if !strings.HasPrefix(header, "@") {
			return nil, fmt.Errorf("%s: malformed FASTQ header %q", path, header)
		}
		var lines [3]string
		for i := 0; i < 3; i++ {
			if !scanner.Scan() {
				return nil, fmt.Errorf("%s: truncated FASTQ record %q", path, header)
			}
			lines[i] = scanner.Text()
		}
		reads = append(reads, Read{
			ID:       strings.TrimPrefix(header, "@"),
			Sequence: lines[0],
			Quality:  lines[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reads, nil
}
