package sim

import (
	"golang.org/x/sync/errgroup"
)

// batchRunner executes the entry operations of one batch. The choice
// between sequential and bounded-parallel execution is made once, at
// simulator construction, not per batch.
type batchRunner interface {
	// runBatch invokes fn for each index in order (sequential) or
	// across a fixed worker pool (parallel). It returns after every
	// invocation has finished; the first error wins.
	runBatch(indices []int, fn func(int) error) error
}

func newBatchRunner(parallel bool, workers int) batchRunner {
	if parallel {
		return &parallelRunner{workers: workers}
	}
	return sequentialRunner{}
}

// sequentialRunner processes entries strictly in manifest order.
type sequentialRunner struct{}

func (sequentialRunner) runBatch(indices []int, fn func(int) error) error {
	for _, i := range indices {
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

// parallelRunner fans entries out over at most workers goroutines.
// Entry-to-entry ordering within the batch is not guaranteed; the
// batch as a whole completes only when all entries have finished.
type parallelRunner struct {
	workers int
}

func (p *parallelRunner) runBatch(indices []int, fn func(int) error) error {
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, i := range indices {
		i := i
		g.Go(func() error { return fn(i) })
	}
	return g.Wait()
}
