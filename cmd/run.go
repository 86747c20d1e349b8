package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/FOI-Bioinformatics/nanorunner/sim"
)

var (
	// CLI flags for the run command
	seed              int64   // Seed for stochastic timing
	interval          float64 // Base seconds between batches
	operation         string  // copy or link
	forceStructure    string  // singleplex or multiplex, empty = detect
	batchSize         int     // Files delivered per batch
	timingModel       string  // uniform, random, poisson, adaptive
	randomFactor      float64 // Random model jitter factor
	burstProbability  float64 // Poisson model burst probability
	burstMultiplier   float64 // Poisson model burst rate multiplier
	adaptationRate    float64 // Adaptive model blend weight
	historySize       int     // Adaptive model history bound
	parallel          bool    // Parallelize entries within a batch
	workerCount       int     // Worker pool size
	profileName       string  // Named configuration preset
	configFile        string  // YAML run configuration file
	quiet             bool    // Suppress progress output
	enableResources   bool    // Sample CPU/memory alongside progress
)

// runCmd replays an existing sequencing run into a target directory
var runCmd = &cobra.Command{
	Use:   "run <source_dir> <target_dir>",
	Short: "Replay sequencing files into a watched directory with realistic timing",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := buildRunConfig(cmd, args[0], args[1])
		if err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}

		opts := []sim.Option{}
		if cmd.Flags().Changed("seed") {
			opts = append(opts, sim.WithSeed(seed))
		}
		var monitor *sim.ProgressMonitor
		if !quiet {
			total := countManifest(cfg)
			monitor = sim.NewProgressMonitor(total, enableResources)
			opts = append(opts, sim.WithObserver(sim.MultiObserver{sim.LogObserver{}, monitor}))
		}

		simulator, err := sim.NewSimulator(cfg, opts...)
		if err != nil {
			logrus.Fatalf("Configuration error: %v", err)
		}

		start := time.Now()
		err = simulator.Run()
		if monitor != nil {
			monitor.Finish()
		}
		if err != nil {
			logrus.Fatalf("Simulation failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		}
	},
}

// buildRunConfig merges config file, profile, and flags, in increasing
// precedence.
func buildRunConfig(cmd *cobra.Command, sourceDir, targetDir string) (sim.Config, error) {
	var cfg sim.Config

	if configFile != "" {
		fileCfg, err := LoadRunConfig(configFile)
		if err != nil {
			return sim.Config{}, err
		}
		cfg, err = fileCfg.toSimConfig()
		if err != nil {
			return sim.Config{}, err
		}
	}

	cfg.SourceDir = sourceDir
	cfg.TargetDir = targetDir

	if profileName != "" {
		profile, ok := sim.GetProfile(profileName)
		if !ok {
			return sim.Config{}, &sim.ConfigError{Field: "profile", Reason: "unknown profile " + profileName}
		}
		applied, err := profile.Apply(cfg)
		if err != nil {
			return sim.Config{}, err
		}
		cfg = applied
	}

	flags := cmd.Flags()
	if flags.Changed("interval") || (configFile == "" && profileName == "") {
		cfg.Interval = time.Duration(interval * float64(time.Second))
	}
	if flags.Changed("operation") || cfg.Operation == "" {
		cfg.Operation = sim.Operation(operation)
	}
	if flags.Changed("force-structure") {
		cfg.ForceStructure = sim.Structure(forceStructure)
	}
	if flags.Changed("batch-size") || cfg.BatchSize == 0 {
		cfg.BatchSize = batchSize
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("worker-count") || cfg.Workers == 0 {
		cfg.Workers = workerCount
	}
	if flags.Changed("timing-model") || cfg.Timing == nil {
		spec, err := sim.TimingSpecFor(timingModel, timingParams(flags.Changed))
		if err != nil {
			return sim.Config{}, err
		}
		cfg.Timing = spec
	}

	return sim.NewConfig(cfg)
}

// timingParams collects only the model parameters the user set, so
// profile and file values survive unless explicitly overridden.
func timingParams(changed func(string) bool) map[string]float64 {
	params := map[string]float64{}
	if changed("random-factor") {
		params["random_factor"] = randomFactor
	}
	if changed("burst-probability") {
		params["burst_probability"] = burstProbability
	}
	if changed("burst-rate-multiplier") {
		params["burst_rate_multiplier"] = burstMultiplier
	}
	if changed("adaptation-rate") {
		params["adaptation_rate"] = adaptationRate
	}
	if changed("history-size") {
		params["history_size"] = float64(historySize)
	}
	return params
}

// countManifest sizes the progress display up front. Errors are
// deferred to the simulator, which reports them properly.
func countManifest(cfg sim.Config) int {
	structure := cfg.ForceStructure
	if structure == "" {
		detected, err := sim.DetectStructure(cfg.SourceDir)
		if err != nil {
			return 0
		}
		structure = detected
	}
	manifest, err := sim.BuildManifest(cfg, structure)
	if err != nil {
		return 0
	}
	return len(manifest)
}

func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for stochastic timing models (default: clock)")
	runCmd.Flags().Float64Var(&interval, "interval", 5.0, "Base seconds between batches")
	runCmd.Flags().StringVar(&operation, "operation", "copy", "File operation (copy, link)")
	runCmd.Flags().StringVar(&forceStructure, "force-structure", "", "Skip detection and force structure (singleplex, multiplex)")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 1, "Files delivered per batch")
	runCmd.Flags().StringVar(&timingModel, "timing-model", "uniform", "Timing model (uniform, random, poisson, adaptive)")
	runCmd.Flags().Float64Var(&randomFactor, "random-factor", 0.3, "Random model: jitter factor in [0,1]")
	runCmd.Flags().Float64Var(&burstProbability, "burst-probability", 0.2, "Poisson model: per-batch burst probability")
	runCmd.Flags().Float64Var(&burstMultiplier, "burst-rate-multiplier", 4.0, "Poisson model: burst rate multiplier")
	runCmd.Flags().Float64Var(&adaptationRate, "adaptation-rate", 0.2, "Adaptive model: history blend weight in [0,1]")
	runCmd.Flags().IntVar(&historySize, "history-size", 5, "Adaptive model: bounded history size")
	runCmd.Flags().BoolVar(&parallel, "parallel", false, "Parallelize file operations within a batch")
	runCmd.Flags().IntVar(&workerCount, "worker-count", 4, "Worker pool size for --parallel")
	runCmd.Flags().StringVar(&profileName, "profile", "", "Apply a named configuration profile")
	runCmd.Flags().StringVar(&configFile, "config", "", "YAML run configuration file")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress output")
	runCmd.Flags().BoolVar(&enableResources, "resources", false, "Show CPU/memory usage alongside progress")

	rootCmd.AddCommand(runCmd)
}
