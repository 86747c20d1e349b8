package sim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Observer receives executor events. BatchStarted and FileDelivered are
// fire-and-forget notifications: a panicking observer is logged and
// ignored, never aborting the run. Implementations used with the
// parallel runner must tolerate concurrent FileDelivered calls.
type Observer interface {
	// BatchStarted fires before a batch's operations begin.
	BatchStarted(index, size, remaining int)
	// FileDelivered fires after each entry operation.
	FileDelivered(entry ManifestEntry, op Operation, elapsed time.Duration)
	// BatchCompleted fires after all of a batch's operations finish,
	// carrying the measured wall time of the batch.
	BatchCompleted(index int, elapsed time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) BatchStarted(int, int, int) {}

func (NopObserver) FileDelivered(ManifestEntry, Operation, time.Duration) {}

func (NopObserver) BatchCompleted(int, time.Duration) {}

// LogObserver logs every event through logrus.
type LogObserver struct{}

func (LogObserver) BatchStarted(index, size, remaining int) {
	logrus.Infof("Processing batch %d (%d files, %d remaining)", index+1, size, remaining)
}

func (LogObserver) FileDelivered(entry ManifestEntry, op Operation, elapsed time.Duration) {
	verb := "Copied"
	if op == OpLink {
		verb = "Linked"
	}
	if entry.Barcode != "" {
		logrus.Infof("%s: %s -> %s/%s (%.3fs)", verb, filepath.Base(entry.Source), entry.Barcode, filepath.Base(entry.Target), elapsed.Seconds())
		return
	}
	logrus.Infof("%s: %s -> %s (%.3fs)", verb, filepath.Base(entry.Source), filepath.Base(entry.Target), elapsed.Seconds())
}

func (LogObserver) BatchCompleted(index int, elapsed time.Duration) {
	logrus.Infof("Batch %d completed in %.2fs", index+1, elapsed.Seconds())
}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) BatchStarted(index, size, remaining int) {
	for _, o := range m {
		o.BatchStarted(index, size, remaining)
	}
}

func (m MultiObserver) FileDelivered(entry ManifestEntry, op Operation, elapsed time.Duration) {
	for _, o := range m {
		o.FileDelivered(entry, op, elapsed)
	}
}

func (m MultiObserver) BatchCompleted(index int, elapsed time.Duration) {
	for _, o := range m {
		o.BatchCompleted(index, elapsed)
	}
}

// ProgressMonitor renders a live progress line (percentage, throughput,
// ETA, optional resource metrics) to stderr. The bar is drawn only when
// stderr is a terminal; otherwise progress is reduced to periodic log
// lines so piped output stays clean.
type ProgressMonitor struct {
	mu        sync.Mutex
	total     int
	processed int
	started   time.Time
	isTTY     bool
	resources *ResourceSampler
}

// NewProgressMonitor creates a monitor for total expected files.
// withResources enables CPU/memory sampling alongside progress.
func NewProgressMonitor(total int, withResources bool) *ProgressMonitor {
	m := &ProgressMonitor{
		total:   total,
		started: time.Now(),
		isTTY:   term.IsTerminal(int(os.Stderr.Fd())),
	}
	if withResources {
		m.resources = NewResourceSampler(time.Second)
	}
	return m
}

func (m *ProgressMonitor) BatchStarted(index, size, remaining int) {}

func (m *ProgressMonitor) FileDelivered(entry ManifestEntry, op Operation, elapsed time.Duration) {
	m.mu.Lock()
	m.processed++
	m.render()
	m.mu.Unlock()
}

func (m *ProgressMonitor) BatchCompleted(index int, elapsed time.Duration) {}

// Finish terminates the progress line and stops resource sampling.
func (m *ProgressMonitor) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resources != nil {
		m.resources.Stop()
	}
	if m.isTTY {
		fmt.Fprintln(os.Stderr)
	}
	elapsed := time.Since(m.started)
	logrus.Infof("Processed %d/%d files in %s", m.processed, m.total, elapsed.Round(10*time.Millisecond))
}

// render draws the progress line. Caller holds mu.
func (m *ProgressMonitor) render() {
	if !m.isTTY {
		return
	}
	pct := 0.0
	if m.total > 0 {
		pct = float64(m.processed) / float64(m.total) * 100
	}
	elapsed := time.Since(m.started)
	rate := float64(m.processed) / elapsed.Seconds()
	eta := "--"
	if rate > 0 && m.processed < m.total {
		eta = time.Duration(float64(m.total-m.processed) / rate * float64(time.Second)).Round(time.Second).String()
	}

	line := fmt.Sprintf("\r[%s] %5.1f%% (%d/%d) %.1f files/s ETA %s",
		progressBar(pct, 30), pct, m.processed, m.total, rate, eta)
	if m.resources != nil {
		if res, ok := m.resources.Latest(); ok {
			line += fmt.Sprintf(" | CPU %.0f%% RSS %dMB", res.CPUPercent, res.RSSBytes/(1<<20))
		}
	}
	fmt.Fprint(os.Stderr, line)
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat("=", filled) + strings.Repeat(" ", width-filled)
}
