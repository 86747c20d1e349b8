package sim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingModel records how often the executor asks for a delay.
type countingModel struct {
	delays   int
	observed []time.Duration
}

func (m *countingModel) NextDelay() time.Duration {
	m.delays++
	return 0
}

func (m *countingModel) Observe(elapsed time.Duration) {
	m.observed = append(m.observed, elapsed)
}

// panicObserver blows up on every callback.
type panicObserver struct{}

func (panicObserver) BatchStarted(int, int, int) { panic("batch started") }

func (panicObserver) FileDelivered(ManifestEntry, Operation, time.Duration) {
	panic("file delivered")
}

func (panicObserver) BatchCompleted(int, time.Duration) { panic("batch completed") }

func seedSource(t *testing.T, n int) string {
	t.Helper()
	src := t.TempDir()
	for i := 0; i < n; i++ {
		writeFile(t, filepath.Join(src, fmt.Sprintf("reads_%02d.fastq", i)))
	}
	return src
}

func TestSimulator_CopySingleplex(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	content := []byte("@read1\nACGTACGT\n+\nIIIIIIII\n")
	require.NoError(t, os.WriteFile(filepath.Join(src, "sample.fastq"), content, 0o644))

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst}, WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, s.Run())

	got, err := os.ReadFile(filepath.Join(dst, "sample.fastq"))
	require.NoError(t, err)
	assert.Equal(t, content, got, "copied file must be byte-identical")
}

func TestSimulator_LinkMultiplex(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(src, "barcode01", "a.fastq"))
	writeFile(t, filepath.Join(src, "barcode02", "b.fastq"))

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst, Operation: OpLink}, WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, s.Run())

	for _, rel := range []string{"barcode01/a.fastq", "barcode02/b.fastq"} {
		link := filepath.Join(dst, rel)
		target, err := os.Readlink(link)
		require.NoError(t, err, "expected %s to be a symlink", rel)
		assert.True(t, filepath.IsAbs(target), "link target must be absolute")

		resolved, err := os.ReadFile(link)
		require.NoError(t, err)
		want, err := os.ReadFile(filepath.Join(src, rel))
		require.NoError(t, err)
		assert.Equal(t, want, resolved)
	}
}

func TestSimulator_DelayCount(t *testing.T) {
	// 5 files, batch size 2 gives 3 batches and exactly 2 delays.
	src := seedSource(t, 5)
	dst := filepath.Join(t.TempDir(), "out")

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst, BatchSize: 2}, WithSeed(1))
	require.NoError(t, err)

	cm := &countingModel{}
	s.pacer.timing = cm
	s.pacer.sleep = func(time.Duration) {}

	require.NoError(t, s.Run())
	assert.Equal(t, 2, cm.delays, "delay must run between batches only")
	assert.Len(t, cm.observed, 3, "every completed batch feeds the model")
}

func TestSimulator_SingleBatchHasNoDelay(t *testing.T) {
	src := seedSource(t, 3)
	dst := filepath.Join(t.TempDir(), "out")

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst, BatchSize: 10}, WithSeed(1))
	require.NoError(t, err)

	cm := &countingModel{}
	s.pacer.timing = cm
	require.NoError(t, s.Run())
	assert.Equal(t, 0, cm.delays)
}

func TestSimulator_ZeroIntervalNeverSleepsLong(t *testing.T) {
	src := seedSource(t, 4)
	dst := filepath.Join(t.TempDir(), "out")

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst, BatchSize: 1}, WithSeed(1))
	require.NoError(t, err)

	var slept time.Duration
	s.pacer.sleep = func(d time.Duration) { slept += d }

	require.NoError(t, s.Run())
	assert.Equal(t, time.Duration(0), slept, "zero interval must not accumulate sleep")
}

func TestSimulator_FailFastReportsPosition(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(src, "a.fastq"))
	writeFile(t, filepath.Join(src, "b.fastq"))
	writeFile(t, filepath.Join(src, "c.fastq"))

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst, BatchSize: 1}, WithSeed(1))
	require.NoError(t, err)
	s.pacer.sleep = func(time.Duration) {}

	// The source vanishes after the manifest is built.
	require.NoError(t, os.Remove(filepath.Join(src, "b.fastq")))

	err = s.Run()
	require.Error(t, err)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 1, de.Batch)
	assert.Equal(t, "b.fastq", filepath.Base(de.Entry.Source))

	// Fail fast: the entry after the failure was never delivered.
	_, statErr := os.Stat(filepath.Join(dst, "c.fastq"))
	assert.True(t, os.IsNotExist(statErr))
	// The batch before it was.
	_, statErr = os.Stat(filepath.Join(dst, "a.fastq"))
	assert.NoError(t, statErr)
}

func TestSimulator_ParallelDeliversAll(t *testing.T) {
	src := seedSource(t, 9)
	dst := filepath.Join(t.TempDir(), "out")

	s, err := NewSimulator(Config{
		SourceDir: src,
		TargetDir: dst,
		BatchSize: 3,
		Parallel:  true,
		Workers:   4,
	}, WithSeed(1))
	require.NoError(t, err)
	s.pacer.sleep = func(time.Duration) {}

	require.NoError(t, s.Run())

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 9)
}

func TestSimulator_ObserverPanicDoesNotAbort(t *testing.T) {
	src := seedSource(t, 2)
	dst := filepath.Join(t.TempDir(), "out")

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst}, WithSeed(1), WithObserver(panicObserver{}))
	require.NoError(t, err)
	s.pacer.sleep = func(time.Duration) {}

	require.NoError(t, s.Run())
	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSimulator_EmptySourceFails(t *testing.T) {
	s, err := NewSimulator(Config{SourceDir: t.TempDir(), TargetDir: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Run(), ErrNoSequencingData)
}

func TestSimulator_CopyOverwritesExistingTarget(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	content := []byte("@r\nACGT\n+\nIIII\n")
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.fastq"), content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.fastq"), []byte("stale"), 0o644))

	s, err := NewSimulator(Config{SourceDir: src, TargetDir: dst}, WithSeed(1))
	require.NoError(t, err)
	require.NoError(t, s.Run())

	got, err := os.ReadFile(filepath.Join(dst, "a.fastq"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestParallelRunner_RunsEveryIndexOnce(t *testing.T) {
	r := newBatchRunner(true, 4)
	var hits [20]int64
	indices := make([]int, 20)
	for i := range indices {
		indices[i] = i
	}
	err := r.runBatch(indices, func(i int) error {
		atomic.AddInt64(&hits[i], 1)
		return nil
	})
	require.NoError(t, err)
	for i, h := range hits {
		assert.EqualValues(t, 1, h, "index %d", i)
	}
}

func TestSequentialRunner_StopsAtFirstError(t *testing.T) {
	r := newBatchRunner(false, 1)
	var calls []int
	boom := errors.New("boom")
	err := r.runBatch([]int{0, 1, 2}, func(i int) error {
		calls = append(calls, i)
		if i == 1 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1}, calls)
}
