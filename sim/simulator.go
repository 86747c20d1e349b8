package sim

import (
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// runOptions carries the knobs shared by the replay and generate
// runners that are not part of the run configuration itself.
type runOptions struct {
	seed    int64
	seedSet bool
	obs     Observer
	sleep   func(time.Duration)
}

// Option customizes a Simulator or Generator at construction.
type Option func(*runOptions)

// WithSeed fixes the master RNG seed, making stochastic timing and read
// synthesis reproducible. Without it the seed comes from the clock.
func WithSeed(seed int64) Option {
	return func(o *runOptions) {
		o.seed = seed
		o.seedSet = true
	}
}

// WithObserver replaces the default LogObserver event sink.
func WithObserver(obs Observer) Option {
	return func(o *runOptions) { o.obs = obs }
}

func newRunOptions(opts []Option) runOptions {
	o := runOptions{
		obs:   LogObserver{},
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.seedSet {
		o.seed = time.Now().UnixNano()
	}
	return o
}

// pacer drives the batch loop shared by replay and generate modes:
// partition work into batches, run each batch through the configured
// runner, feed the measured batch duration into the timing model, and
// sleep for the model's delay between batches. The inter-batch sleep is
// a plain blocking sleep; batch boundaries are strictly ordered even
// when entries within a batch run in parallel.
type pacer struct {
	batchSize int
	timing    TimingModel
	runner    batchRunner
	obs       Observer
	sleep     func(time.Duration)
}

// run processes total items via do. The timing model is consulted
// exactly ceil(total/batchSize)-1 times: there is no trailing delay
// after the final batch. The first failing item aborts the run with
// its batch index recorded; prior batches stay on disk.
func (p *pacer) run(total int, do func(i int) error) error {
	nBatches := ceilDiv(total, p.batchSize)
	for bi := 0; bi < nBatches; bi++ {
		lo := bi * p.batchSize
		hi := min(lo+p.batchSize, total)
		indices := make([]int, 0, hi-lo)
		for i := lo; i < hi; i++ {
			indices = append(indices, i)
		}

		p.notify(func() { p.obs.BatchStarted(bi, hi-lo, total-lo) })

		start := time.Now()
		err := p.runner.runBatch(indices, do)
		elapsed := time.Since(start)
		if err != nil {
			var de *DeliveryError
			if errors.As(err, &de) {
				de.Batch = bi
			}
			return err
		}

		// Feed the measured duration back before the next delay is
		// computed; the adaptive model depends on this ordering.
		p.timing.Observe(elapsed)
		p.notify(func() { p.obs.BatchCompleted(bi, elapsed) })

		if bi < nBatches-1 {
			delay := p.timing.NextDelay()
			logrus.Debugf("Waiting %.2fs before next batch", delay.Seconds())
			p.sleep(delay)
		}
	}
	return nil
}

// notify shields the run from observer failures: progress reporting is
// fire-and-forget.
func (p *pacer) notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Warnf("observer panic ignored: %v", r)
		}
	}()
	fn()
}

// Simulator replays an existing run directory into the target
// directory with sequencer-like pacing.
type Simulator struct {
	cfg   Config
	pacer pacer
}

// NewSimulator validates cfg and builds the executor. All configuration
// errors surface here; Run never fails on configuration.
func NewSimulator(cfg Config, opts ...Option) (*Simulator, error) {
	cfg, err := NewConfig(cfg)
	if err != nil {
		return nil, err
	}
	o := newRunOptions(opts)
	rng := NewPartitionedRNG(o.seed)
	timing, err := NewTimingModel(cfg.Timing, cfg.Interval, rng.ForSubsystem(SubsystemTiming))
	if err != nil {
		return nil, err
	}
	return &Simulator{
		cfg: cfg,
		pacer: pacer{
			batchSize: cfg.BatchSize,
			timing:    timing,
			runner:    newBatchRunner(cfg.Parallel, cfg.Workers),
			obs:       o.obs,
			sleep:     o.sleep,
		},
	}, nil
}

// Run detects (or honors the forced) structure, builds the manifest,
// and delivers it to completion. Any single-entry failure aborts the
// run with a DeliveryError naming the batch and entry; files from
// prior batches are left in place.
func (s *Simulator) Run() error {
	logrus.Infof("Starting nanopore simulation: %s -> %s", s.cfg.SourceDir, s.cfg.TargetDir)

	structure, err := ResolveStructure(s.cfg)
	if err != nil {
		return err
	}
	manifest, err := BuildManifest(s.cfg, structure)
	if err != nil {
		return err
	}
	logrus.Infof("Found %d files to simulate", len(manifest))

	if err := os.MkdirAll(s.cfg.TargetDir, 0o755); err != nil {
		return err
	}

	err = s.pacer.run(len(manifest), func(i int) error {
		entry := manifest[i]
		start := time.Now()
		if err := applyOperation(s.cfg.Operation, entry); err != nil {
			return &DeliveryError{Entry: entry, Err: err}
		}
		s.pacer.notify(func() {
			s.pacer.obs.FileDelivered(entry, s.cfg.Operation, time.Since(start))
		})
		return nil
	})
	if err != nil {
		return err
	}

	logrus.Info("Simulation completed")
	return nil
}
