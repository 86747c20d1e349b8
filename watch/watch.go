// Package watch observes a delivery directory from the consumer side:
// it reports sequencing files as they arrive, together with the
// observed inter-arrival cadence. It exists to verify a simulation the
// same way a downstream pipeline's watcher would see it.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/FOI-Bioinformatics/nanorunner/sim"
)

// Arrival is one observed sequencing-file delivery.
type Arrival struct {
	Path    string
	Barcode string
	Time    time.Time
}

// Watcher reports sequencing-file arrivals under a directory. Barcode
// subdirectories are watched as they appear, so a multiplex delivery
// into a fresh target is fully observed.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	arrivals chan Arrival
	errs     chan error

	mu   sync.Mutex
	seen map[string]bool
	done chan struct{}
}

// New starts watching dir. Existing subdirectories that match barcode
// patterns are watched immediately; files already present are not
// reported.
func New(dir string) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch target: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch target %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		root:     dir,
		fsw:      fsw,
		arrivals: make(chan Arrival, 128),
		errs:     make(chan error, 8),
		seen:     make(map[string]bool),
		done:     make(chan struct{}),
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() && sim.IsBarcodeDir(entry.Name()) {
			if err := fsw.Add(filepath.Join(dir, entry.Name())); err != nil {
				logrus.Warnf("cannot watch %s: %v", entry.Name(), err)
			}
		}
	}

	go w.loop()
	return w, nil
}

// Arrivals delivers observed files. The channel closes when the
// watcher is closed.
func (w *Watcher) Arrivals() <-chan Arrival { return w.arrivals }

// Errors delivers watcher failures.
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops watching and closes the arrival channel.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer close(w.arrivals)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Lstat(event.Name)
	if err != nil {
		return
	}

	// A new barcode directory may receive files before we can watch
	// it; pick up anything already inside.
	if info.IsDir() {
		if sim.IsBarcodeDir(filepath.Base(event.Name)) {
			if err := w.fsw.Add(event.Name); err != nil {
				logrus.Warnf("cannot watch %s: %v", event.Name, err)
			}
			w.sweep(event.Name)
		}
		return
	}

	if sim.IsSequencingFile(event.Name) {
		w.report(event.Name)
	}
}

// sweep reports sequencing files already present in a just-added
// directory.
func (w *Watcher) sweep(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && sim.IsSequencingFile(entry.Name()) {
			w.report(filepath.Join(dir, entry.Name()))
		}
	}
}

func (w *Watcher) report(path string) {
	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	barcode := ""
	if parent := filepath.Base(filepath.Dir(path)); sim.IsBarcodeDir(parent) {
		barcode = parent
	}
	select {
	case w.arrivals <- Arrival{Path: path, Barcode: barcode, Time: time.Now()}:
	default:
		logrus.Warn("arrival channel full, dropping event")
	}
}

// CadenceReport summarizes observed arrivals.
type CadenceReport struct {
	Count        int
	PerBarcode   map[string]int
	First        time.Time
	Last         time.Time
	MeanInterval time.Duration
	MinInterval  time.Duration
	MaxInterval  time.Duration
}

// Cadence computes arrival statistics from a recorded sequence.
func Cadence(arrivals []Arrival) CadenceReport {
	report := CadenceReport{
		Count:      len(arrivals),
		PerBarcode: make(map[string]int),
	}
	if len(arrivals) == 0 {
		return report
	}

	sorted := append([]Arrival(nil), arrivals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	report.First = sorted[0].Time
	report.Last = sorted[len(sorted)-1].Time
	for _, a := range sorted {
		key := a.Barcode
		if key == "" {
			key = "(root)"
		}
		report.PerBarcode[key]++
	}

	if len(sorted) < 2 {
		return report
	}
	var total time.Duration
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Time.Sub(sorted[i-1].Time)
		total += gap
		if report.MinInterval == 0 || gap < report.MinInterval {
			report.MinInterval = gap
		}
		if gap > report.MaxInterval {
			report.MaxInterval = gap
		}
	}
	report.MeanInterval = total / time.Duration(len(sorted)-1)
	return report
}
