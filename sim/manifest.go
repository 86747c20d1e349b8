package sim

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ManifestEntry is one planned file delivery: copy or link Source to
// Target. Barcode is empty for singleplex entries.
type ManifestEntry struct {
	Source  string
	Target  string
	Barcode string
}

// ResolveStructure returns the forced structure when the config carries
// one, bypassing detection entirely, and detects otherwise.
func ResolveStructure(cfg Config) (Structure, error) {
	if cfg.ForceStructure != "" {
		logrus.Infof("Using forced structure: %s", cfg.ForceStructure)
		return cfg.ForceStructure, nil
	}
	structure, err := DetectStructure(cfg.SourceDir)
	if err != nil {
		return "", err
	}
	logrus.Infof("Detected structure: %s", structure)
	return structure, nil
}

// BuildManifest walks the source tree according to structure and
// returns the ordered delivery list. Entries preserve directory
// traversal order; no sorting is applied beyond what the filesystem
// enumeration yields. Forcing singleplex on a mixed tree silently
// ignores barcode directories, and vice versa.
func BuildManifest(cfg Config, structure Structure) ([]ManifestEntry, error) {
	switch structure {
	case StructureSingleplex:
		return buildSingleplexManifest(cfg)
	case StructureMultiplex:
		return buildMultiplexManifest(cfg)
	default:
		return nil, &ConfigError{Field: "structure", Reason: fmt.Sprintf("unknown structure %q", structure)}
	}
}

func buildSingleplexManifest(cfg Config) ([]ManifestEntry, error) {
	files, err := findSequencingFiles(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("building manifest: %w", err)
	}
	manifest := make([]ManifestEntry, 0, len(files))
	for _, f := range files {
		manifest = append(manifest, ManifestEntry{
			Source: f,
			Target: filepath.Join(cfg.TargetDir, filepath.Base(f)),
		})
	}
	return manifest, nil
}

func buildMultiplexManifest(cfg Config) ([]ManifestEntry, error) {
	barcodeDirs, err := findBarcodeDirs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("building manifest: %w", err)
	}
	var manifest []ManifestEntry
	for _, dir := range barcodeDirs {
		barcode := filepath.Base(dir)
		files, err := findSequencingFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("building manifest: %w", err)
		}
		for _, f := range files {
			manifest = append(manifest, ManifestEntry{
				Source:  f,
				Target:  filepath.Join(cfg.TargetDir, barcode, filepath.Base(f)),
				Barcode: barcode,
			})
		}
	}
	return manifest, nil
}

// GenomeShare assigns a read count to one genome within a generated
// output file. Entries with more than one share hold mixed reads.
type GenomeShare struct {
	Genome string
	Reads  int
}

// GenerateEntry is one planned synthetic output file.
type GenerateEntry struct {
	Shares    []GenomeShare
	Dir       string
	Barcode   string
	FileIndex int
	Reads     int
}

// BuildGenerateManifest partitions the configured total read count into
// output files of at most ReadsPerFile reads. With multiple genomes and
// MixReads unset, each genome gets its own file series — one barcode
// directory per genome under multiplex, separate file series in the
// target root under singleplex. With MixReads set, every file holds
// reads from all genomes in abundance proportion.
func BuildGenerateManifest(cfg GenerateConfig) ([]GenerateEntry, error) {
	perGenome := distributeReads(cfg.ReadCount, cfg.abundancesOrEqual())
	for i, g := range cfg.Genomes {
		logrus.Infof("Genome %d (%s): %d reads", i+1, filepath.Base(g), perGenome[i])
	}

	var manifest []GenerateEntry
	switch {
	case cfg.Structure == StructureMultiplex:
		for i, genome := range cfg.Genomes {
			barcode := fmt.Sprintf("barcode%02d", i+1)
			manifest = append(manifest, chunkGenome(genome, perGenome[i], cfg.ReadsPerFile,
				filepath.Join(cfg.TargetDir, barcode), barcode)...)
		}
	case cfg.MixReads:
		weights := cfg.abundancesOrEqual()
		remaining := cfg.ReadCount
		total := ceilDiv(cfg.ReadCount, cfg.ReadsPerFile)
		for fi := 0; fi < total; fi++ {
			chunk := min(cfg.ReadsPerFile, remaining)
			remaining -= chunk
			shares := make([]GenomeShare, 0, len(cfg.Genomes))
			for gi, n := range distributeReads(chunk, weights) {
				if n > 0 {
					shares = append(shares, GenomeShare{Genome: cfg.Genomes[gi], Reads: n})
				}
			}
			manifest = append(manifest, GenerateEntry{
				Shares:    shares,
				Dir:       cfg.TargetDir,
				FileIndex: fi,
				Reads:     chunk,
			})
		}
	default:
		for i, genome := range cfg.Genomes {
			manifest = append(manifest, chunkGenome(genome, perGenome[i], cfg.ReadsPerFile,
				cfg.TargetDir, "")...)
		}
	}
	return manifest, nil
}

// chunkGenome splits one genome's read allocation into files of at most
// readsPerFile reads each; every genome yields at least one file.
func chunkGenome(genome string, reads, readsPerFile int, dir, barcode string) []GenerateEntry {
	nFiles := ceilDiv(reads, readsPerFile)
	if nFiles < 1 {
		nFiles = 1
	}
	entries := make([]GenerateEntry, 0, nFiles)
	remaining := reads
	for fi := 0; fi < nFiles; fi++ {
		chunk := min(readsPerFile, remaining)
		remaining -= chunk
		entries = append(entries, GenerateEntry{
			Shares:    []GenomeShare{{Genome: genome, Reads: chunk}},
			Dir:       dir,
			Barcode:   barcode,
			FileIndex: fi,
			Reads:     chunk,
		})
	}
	return entries
}

// distributeReads splits total across weights using the largest
// remainder method. The result sums to total exactly, and every genome
// with positive weight receives at least one read.
func distributeReads(total int, weights []float64) []int {
	n := len(weights)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int{total}
	}

	raw := make([]float64, n)
	counts := make([]int, n)
	for i, w := range weights {
		raw[i] = w * float64(total)
		counts[i] = int(raw[i])
		if w > 0 && counts[i] < 1 {
			counts[i] = 1
		}
	}

	allocated := 0
	for _, c := range counts {
		allocated += c
	}
	deficit := total - allocated
	if deficit > 0 {
		order := rankByRemainder(raw, counts)
		for i := 0; i < deficit && i < n; i++ {
			counts[order[i]]++
		}
	} else if deficit < 0 {
		// Over-allocated by the minimum-1 guarantee; take back from
		// the largest allocations that still exceed 1.
		surplus := -deficit
		for surplus > 0 {
			largest := -1
			for i := 0; i < n; i++ {
				if counts[i] > 1 && (largest < 0 || counts[i] > counts[largest]) {
					largest = i
				}
			}
			if largest < 0 {
				break
			}
			counts[largest]--
			surplus--
		}
	}
	return counts
}

// rankByRemainder orders indices by descending fractional remainder,
// ties broken by index.
func rankByRemainder(raw []float64, counts []int) []int {
	n := len(raw)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rem := func(i int) float64 { return raw[i] - float64(int(raw[i])) }
	for i := 1; i < n; i++ {
		for j := i; j > 0; j-- {
			a, b := order[j-1], order[j]
			if rem(b) > rem(a) || (rem(b) == rem(a) && b < a) {
				order[j-1], order[j] = b, a
			} else {
				break
			}
		}
	}
	return order
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
