package sim

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GenerateConfig holds the knobs of one generate-mode run, where output
// files are synthesized from reference genomes instead of replayed from
// an existing run directory. Build it with NewGenerateConfig.
type GenerateConfig struct {
	TargetDir string
	// Genomes are FASTA files reads are sliced from.
	Genomes []string
	// Abundances weight the read split across genomes. Empty means
	// equal weights; when set, its length must match Genomes.
	Abundances []float64
	// ReadCount is the total number of reads across all genomes.
	ReadCount int
	// ReadsPerFile caps reads per output file; the last file of a
	// series may be short.
	ReadsPerFile int
	// MixReads interleaves reads from all genomes into shared files
	// instead of one file series per genome.
	MixReads bool
	// Structure defaults to multiplex (one barcode per genome) unless
	// MixReads is set, which forces singleplex.
	Structure Structure

	MeanReadLength int
	StdReadLength  int
	MinReadLength  int
	MeanQuality    float64
	StdQuality     float64
	// Format is "fastq" or "fastq.gz".
	Format string

	Interval  time.Duration
	BatchSize int
	Timing    TimingSpec
	Parallel  bool
	Workers   int
}

// NewGenerateConfig fills defaults and validates, mirroring NewConfig's
// fail-fast contract.
func NewGenerateConfig(cfg GenerateConfig) (GenerateConfig, error) {
	if cfg.ReadCount == 0 {
		cfg.ReadCount = 100
	}
	if cfg.ReadsPerFile == 0 {
		cfg.ReadsPerFile = 100
	}
	if cfg.MeanReadLength == 0 {
		cfg.MeanReadLength = 8000
	}
	if cfg.StdReadLength == 0 {
		cfg.StdReadLength = 4000
	}
	if cfg.MinReadLength == 0 {
		cfg.MinReadLength = 200
	}
	if cfg.MeanQuality == 0 {
		cfg.MeanQuality = 12
	}
	if cfg.StdQuality == 0 {
		cfg.StdQuality = 3
	}
	if cfg.Format == "" {
		cfg.Format = "fastq"
	}
	if cfg.Structure == "" {
		if cfg.MixReads {
			cfg.Structure = StructureSingleplex
		} else {
			cfg.Structure = StructureMultiplex
		}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.Timing == nil {
		cfg.Timing = UniformSpec{}
	}

	if cfg.TargetDir == "" {
		return GenerateConfig{}, &ConfigError{Field: "target_dir", Reason: "must not be empty"}
	}
	if len(cfg.Genomes) == 0 {
		return GenerateConfig{}, &ConfigError{Field: "genomes", Reason: "at least one genome is required"}
	}
	if len(cfg.Abundances) > 0 && len(cfg.Abundances) != len(cfg.Genomes) {
		return GenerateConfig{}, &ConfigError{Field: "abundances", Reason: "must match the number of genomes"}
	}
	for _, a := range cfg.Abundances {
		if a < 0 {
			return GenerateConfig{}, &ConfigError{Field: "abundances", Reason: "must be non-negative"}
		}
	}
	if cfg.ReadCount < 1 {
		return GenerateConfig{}, &ConfigError{Field: "read_count", Reason: "must be at least 1"}
	}
	if cfg.ReadsPerFile < 1 {
		return GenerateConfig{}, &ConfigError{Field: "reads_per_file", Reason: "must be at least 1"}
	}
	if cfg.MixReads && cfg.Structure == StructureMultiplex {
		return GenerateConfig{}, &ConfigError{Field: "mix_reads", Reason: "cannot be combined with multiplex structure"}
	}
	if cfg.Structure != StructureSingleplex && cfg.Structure != StructureMultiplex {
		return GenerateConfig{}, &ConfigError{Field: "structure", Reason: fmt.Sprintf("unknown structure %q", cfg.Structure)}
	}
	if cfg.Format != "fastq" && cfg.Format != "fastq.gz" {
		return GenerateConfig{}, &ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %q", cfg.Format)}
	}
	if cfg.Interval < 0 {
		return GenerateConfig{}, &ConfigError{Field: "interval", Reason: "must be non-negative"}
	}
	if cfg.BatchSize < 1 {
		return GenerateConfig{}, &ConfigError{Field: "batch_size", Reason: "must be at least 1"}
	}
	if cfg.Workers < 1 {
		return GenerateConfig{}, &ConfigError{Field: "worker_count", Reason: "must be at least 1"}
	}
	if err := cfg.Timing.validate(); err != nil {
		return GenerateConfig{}, err
	}
	return cfg, nil
}

// abundancesOrEqual returns the configured abundance weights, or equal
// weights when none were given.
func (cfg GenerateConfig) abundancesOrEqual() []float64 {
	if len(cfg.Abundances) == len(cfg.Genomes) && len(cfg.Abundances) > 0 {
		return cfg.Abundances
	}
	weights := make([]float64, len(cfg.Genomes))
	for i := range weights {
		weights[i] = 1.0 / float64(len(cfg.Genomes))
	}
	return weights
}

func (cfg GenerateConfig) ext() string {
	if cfg.Format == "fastq.gz" {
		return ".fastq.gz"
	}
	return ".fastq"
}

// Generator synthesizes pseudo-reads from reference genomes and
// delivers the resulting files with the same batch pacing as replay
// mode. Reads are error-free subsequences of the genome; lengths and
// per-base qualities are Gaussian, clamped to sane bounds.
type Generator struct {
	cfg     GenerateConfig
	pacer   pacer
	rng     *PartitionedRNG
	genomes map[string]string
}

// NewGenerator validates cfg and builds the generate-mode runner.
func NewGenerator(cfg GenerateConfig, opts ...Option) (*Generator, error) {
	cfg, err := NewGenerateConfig(cfg)
	if err != nil {
		return nil, err
	}
	o := newRunOptions(opts)
	rng := NewPartitionedRNG(o.seed)
	timing, err := NewTimingModel(cfg.Timing, cfg.Interval, rng.ForSubsystem(SubsystemTiming))
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg: cfg,
		rng: rng,
		pacer: pacer{
			batchSize: cfg.BatchSize,
			timing:    timing,
			runner:    newBatchRunner(cfg.Parallel, cfg.Workers),
			obs:       o.obs,
			sleep:     o.sleep,
		},
	}, nil
}

// Run loads the genomes, builds the generate manifest, and writes every
// output file under batch pacing. Failure semantics match replay mode:
// fail fast, no cleanup of already-written files.
func (g *Generator) Run() error {
	logrus.Infof("Starting generate mode: %d genome(s) -> %s", len(g.cfg.Genomes), g.cfg.TargetDir)

	// Genomes are parsed once, up front, so parallel workers only read
	// the cache.
	g.genomes = make(map[string]string, len(g.cfg.Genomes))
	for _, path := range g.cfg.Genomes {
		seq, err := GenomeSequence(path)
		if err != nil {
			return fmt.Errorf("loading genome: %w", err)
		}
		g.genomes[path] = seq
	}

	manifest, err := BuildGenerateManifest(g.cfg)
	if err != nil {
		return err
	}
	logrus.Infof("Generating %d output file(s)", len(manifest))

	if err := os.MkdirAll(g.cfg.TargetDir, 0o755); err != nil {
		return err
	}

	err = g.pacer.run(len(manifest), func(i int) error {
		entry := manifest[i]
		start := time.Now()
		path, err := g.generateFile(entry, i)
		if err != nil {
			return &DeliveryError{
				Entry: ManifestEntry{Target: path, Barcode: entry.Barcode},
				Err:   err,
			}
		}
		g.pacer.notify(func() {
			g.pacer.obs.FileDelivered(ManifestEntry{Target: path, Barcode: entry.Barcode}, OpCopy, time.Since(start))
		})
		return nil
	})
	if err != nil {
		return err
	}

	logrus.Info("Generation completed")
	return nil
}

// generateFile writes one output file. Each file draws from its own
// derived RNG stream, keyed by manifest position, so parallel workers
// never share state and results stay reproducible regardless of
// completion order.
func (g *Generator) generateFile(entry GenerateEntry, index int) (string, error) {
	rng := rand.New(rand.NewSource(g.rng.DeriveSeed(fmt.Sprintf("%s/file_%d", SubsystemGenerator, index))))

	var reads []Read
	for _, share := range entry.Shares {
		genome := g.genomes[share.Genome]
		stem := genomeStem(share.Genome)
		for r := 0; r < share.Reads; r++ {
			reads = append(reads, g.sliceRead(rng, genome, fmt.Sprintf("%s_read_%d_%d", stem, entry.FileIndex, r)))
		}
	}
	if len(entry.Shares) > 1 {
		rng.Shuffle(len(reads), func(i, j int) { reads[i], reads[j] = reads[j], reads[i] })
	}

	name := fmt.Sprintf("reads_%04d%s", entry.FileIndex, g.cfg.ext())
	if len(entry.Shares) == 1 {
		name = fmt.Sprintf("%s_%04d%s", genomeStem(entry.Shares[0].Genome), entry.FileIndex, g.cfg.ext())
	}
	path := filepath.Join(entry.Dir, name)

	if err := os.MkdirAll(entry.Dir, 0o755); err != nil {
		return path, err
	}
	if err := WriteReads(path, reads); err != nil {
		return path, err
	}
	return path, nil
}

// sliceRead cuts one pseudo-read out of genome at a random position.
func (g *Generator) sliceRead(rng *rand.Rand, genome, id string) Read {
	length := g.sampleLength(rng, len(genome))
	start := 0
	if len(genome) > length {
		start = rng.Intn(len(genome) - length + 1)
	}
	seq := genome[start : start+length]

	qual := make([]byte, length)
	for i := range qual {
		q := int(math.Round(rng.NormFloat64()*g.cfg.StdQuality + g.cfg.MeanQuality))
		if q < 2 {
			q = 2
		}
		if q > 41 {
			q = 41
		}
		qual[i] = byte('!' + q)
	}

	return Read{ID: id, Sequence: seq, Quality: string(qual)}
}

// sampleLength draws a Gaussian read length clamped to
// [MinReadLength, genomeLen].
func (g *Generator) sampleLength(rng *rand.Rand, genomeLen int) int {
	val := rng.NormFloat64()*float64(g.cfg.StdReadLength) + float64(g.cfg.MeanReadLength)
	length := int(math.Round(val))
	if length < g.cfg.MinReadLength {
		length = g.cfg.MinReadLength
	}
	if length > genomeLen {
		length = genomeLen
	}
	return length
}

func genomeStem(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".fasta", ".fa", ".fna"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
