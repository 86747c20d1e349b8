package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/FOI-Bioinformatics/nanorunner/sim"
)

var (
	// CLI flags for the generate command
	genGenomes        []string  // FASTA genome inputs
	genAbundances     []float64 // Per-genome abundance weights
	genReadCount      int       // Total reads across all genomes
	genReadsPerFile   int       // Reads per output file
	genMixReads       bool      // Interleave reads from all genomes
	genStructure      string    // Output structure override
	genMeanReadLength int       // Mean synthetic read length
	genStdReadLength  int       // Stddev of read length
	genMinReadLength  int       // Minimum read length
	genMeanQuality    float64   // Mean per-base quality
	genStdQuality     float64   // Stddev of per-base quality
	genFormat         string    // Output format (fastq, fastq.gz)
)

// generateCmd synthesizes sequencing files from reference genomes
var generateCmd = &cobra.Command{
	Use:   "generate <target_dir>",
	Short: "Synthesize sequencing files from reference genomes with realistic timing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := sim.TimingSpecFor(timingModel, timingParams(cmd.Flags().Changed))
		if err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}

		cfg := sim.GenerateConfig{
			TargetDir:      args[0],
			Genomes:        genGenomes,
			Abundances:     genAbundances,
			ReadCount:      genReadCount,
			ReadsPerFile:   genReadsPerFile,
			MixReads:       genMixReads,
			Structure:      sim.Structure(genStructure),
			MeanReadLength: genMeanReadLength,
			StdReadLength:  genStdReadLength,
			MinReadLength:  genMinReadLength,
			MeanQuality:    genMeanQuality,
			StdQuality:     genStdQuality,
			Format:         genFormat,
			Interval:       time.Duration(interval * float64(time.Second)),
			BatchSize:      batchSize,
			Timing:         spec,
			Parallel:       parallel,
			Workers:        workerCount,
		}

		opts := []sim.Option{}
		if cmd.Flags().Changed("seed") {
			opts = append(opts, sim.WithSeed(seed))
		}

		generator, err := sim.NewGenerator(cfg, opts...)
		if err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}
		if err := generator.Run(); err != nil {
			logrus.Fatalf("Generation failed: %v", err)
		}
	},
}

func init() {
	generateCmd.Flags().StringSliceVar(&genGenomes, "genome", nil, "Reference genome FASTA (repeatable)")
	generateCmd.Flags().Float64SliceVar(&genAbundances, "abundances", nil, "Comma-separated abundance weights, one per genome")
	generateCmd.Flags().IntVar(&genReadCount, "read-count", 100, "Total reads across all genomes")
	generateCmd.Flags().IntVar(&genReadsPerFile, "reads-per-file", 100, "Reads per output file")
	generateCmd.Flags().BoolVar(&genMixReads, "mix-reads", false, "Interleave reads from all genomes into shared files")
	generateCmd.Flags().StringVar(&genStructure, "force-structure", "", "Output structure (singleplex, multiplex)")
	generateCmd.Flags().IntVar(&genMeanReadLength, "mean-read-length", 8000, "Mean synthetic read length")
	generateCmd.Flags().IntVar(&genStdReadLength, "std-read-length", 4000, "Stddev of read length")
	generateCmd.Flags().IntVar(&genMinReadLength, "min-read-length", 200, "Minimum read length")
	generateCmd.Flags().Float64Var(&genMeanQuality, "mean-quality", 12, "Mean per-base quality score")
	generateCmd.Flags().Float64Var(&genStdQuality, "std-quality", 3, "Stddev of per-base quality score")
	generateCmd.Flags().StringVar(&genFormat, "format", "fastq", "Output format (fastq, fastq.gz)")

	// Shared pacing flags reuse the run command's variables.
	generateCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for timing and read synthesis (default: clock)")
	generateCmd.Flags().Float64Var(&interval, "interval", 5.0, "Base seconds between batches")
	generateCmd.Flags().IntVar(&batchSize, "batch-size", 1, "Files written per batch")
	generateCmd.Flags().StringVar(&timingModel, "timing-model", "uniform", "Timing model (uniform, random, poisson, adaptive)")
	generateCmd.Flags().Float64Var(&randomFactor, "random-factor", 0.3, "Random model: jitter factor in [0,1]")
	generateCmd.Flags().Float64Var(&burstProbability, "burst-probability", 0.2, "Poisson model: per-batch burst probability")
	generateCmd.Flags().Float64Var(&burstMultiplier, "burst-rate-multiplier", 4.0, "Poisson model: burst rate multiplier")
	generateCmd.Flags().Float64Var(&adaptationRate, "adaptation-rate", 0.2, "Adaptive model: history blend weight in [0,1]")
	generateCmd.Flags().IntVar(&historySize, "history-size", 5, "Adaptive model: bounded history size")
	generateCmd.Flags().BoolVar(&parallel, "parallel", false, "Parallelize file generation within a batch")
	generateCmd.Flags().IntVar(&workerCount, "worker-count", 4, "Worker pool size for --parallel")

	rootCmd.AddCommand(generateCmd)
}
