package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains arrivals until want paths were seen or the timeout
// expires. Filesystem notification latency varies wildly across
// platforms, so the timeout is generous.
func collect(t *testing.T, w *Watcher, want int) []Arrival {
	t.Helper()
	var got []Arrival
	deadline := time.After(10 * time.Second)
	for len(got) < want {
		select {
		case a, ok := <-w.Arrivals():
			if !ok {
				t.Fatalf("arrival channel closed after %d of %d arrivals", len(got), want)
			}
			got = append(got, a)
		case err := <-w.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timed out after %d of %d arrivals", len(got), want)
		}
	}
	return got
}

func TestWatcher_ReportsRootArrivals(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.fastq"), []byte("@r\nA\n+\n!\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.fq.gz"), []byte("x"), 0o644))

	got := collect(t, w, 2)
	names := map[string]bool{}
	for _, a := range got {
		assert.Empty(t, a.Barcode)
		names[filepath.Base(a.Path)] = true
	}
	assert.True(t, names["a.fastq"])
	assert.True(t, names["b.fq.gz"])
}

func TestWatcher_FollowsNewBarcodeDirs(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	require.NoError(t, err)
	defer w.Close()

	barcode := filepath.Join(dir, "barcode01")
	require.NoError(t, os.Mkdir(barcode, 0o755))
	// Give the watcher a moment to pick up the new directory before
	// writing into it; the sweep covers the race either way.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(barcode, "x.fastq"), []byte("@r\nA\n+\n!\n"), 0o644))

	got := collect(t, w, 1)
	assert.Equal(t, "barcode01", got[0].Barcode)
	assert.Equal(t, "x.fastq", filepath.Base(got[0].Path))
}

func TestWatcher_ExistingBarcodeDirWatched(t *testing.T) {
	dir := t.TempDir()
	barcode := filepath.Join(dir, "BC05")
	require.NoError(t, os.Mkdir(barcode, 0o755))

	w, err := New(dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(barcode, "y.fastq"), []byte("@r\nA\n+\n!\n"), 0o644))

	got := collect(t, w, 1)
	assert.Equal(t, "BC05", got[0].Barcode)
}

func TestWatcher_DeduplicatesWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir)
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "a.fastq")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	collect(t, w, 1)

	// Appending triggers more Write events; the file was already
	// reported and must not appear again.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("two")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case a, ok := <-w.Arrivals():
		if ok {
			t.Fatalf("unexpected duplicate arrival: %s", a.Path)
		}
	case <-time.After(500 * time.Millisecond):
	}
}

func TestNew_RejectsMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNew_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := New(path)
	assert.Error(t, err)
}

func TestCadence_Empty(t *testing.T) {
	report := Cadence(nil)
	assert.Equal(t, 0, report.Count)
	assert.Empty(t, report.PerBarcode)
}

func TestCadence_Statistics(t *testing.T) {
	t0 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	arrivals := []Arrival{
		{Path: "a.fastq", Time: t0},
		{Path: "b.fastq", Barcode: "barcode01", Time: t0.Add(2 * time.Second)},
		{Path: "c.fastq", Barcode: "barcode01", Time: t0.Add(3 * time.Second)},
	}

	report := Cadence(arrivals)
	assert.Equal(t, 3, report.Count)
	assert.Equal(t, map[string]int{"(root)": 1, "barcode01": 2}, report.PerBarcode)
	assert.Equal(t, t0, report.First)
	assert.Equal(t, t0.Add(3*time.Second), report.Last)
	assert.Equal(t, 1500*time.Millisecond, report.MeanInterval)
	assert.Equal(t, time.Second, report.MinInterval)
	assert.Equal(t, 2*time.Second, report.MaxInterval)
}

func TestCadence_SortsOutOfOrderInput(t *testing.T) {
	t0 := time.Now()
	arrivals := []Arrival{
		{Path: "b.fastq", Time: t0.Add(time.Second)},
		{Path: "a.fastq", Time: t0},
	}
	report := Cadence(arrivals)
	assert.Equal(t, t0, report.First)
	assert.Equal(t, time.Second, report.MinInterval)
	assert.Equal(t, time.Second, report.MaxInterval)
}
