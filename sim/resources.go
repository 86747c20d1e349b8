package sim

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

// ResourceMetrics is one snapshot of the simulator process and the
// host memory, displayed alongside progress.
type ResourceMetrics struct {
	CPUPercent    float64
	RSSBytes      uint64
	MemoryPercent float64
	SampledAt     time.Time
}

// ResourceSampler polls process CPU and memory usage in the background.
// Sampling failures are logged at debug level and skipped; monitoring
// must never interfere with the run.
type ResourceSampler struct {
	mu     sync.Mutex
	latest ResourceMetrics
	ok     bool
	stop   chan struct{}
	done   chan struct{}
}

// NewResourceSampler starts sampling at the given interval.
func NewResourceSampler(interval time.Duration) *ResourceSampler {
	s := &ResourceSampler{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.loop(interval)
	return s
}

// Latest returns the most recent snapshot, if any has been taken.
func (s *ResourceSampler) Latest() (ResourceMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.ok
}

// Stop terminates the sampling goroutine and waits for it to exit.
func (s *ResourceSampler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

func (s *ResourceSampler) loop(interval time.Duration) {
	defer close(s.done)
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logrus.Debugf("resource sampler disabled: %v", err)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sample(proc)
		}
	}
}

func (s *ResourceSampler) sample(proc *process.Process) {
	metrics := ResourceMetrics{SampledAt: time.Now()}

	if cpu, err := proc.CPUPercent(); err == nil {
		metrics.CPUPercent = cpu
	} else {
		logrus.Debugf("cpu sample failed: %v", err)
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		metrics.RSSBytes = info.RSS
	} else if err != nil {
		logrus.Debugf("memory sample failed: %v", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		metrics.MemoryPercent = vm.UsedPercent
	}

	s.mu.Lock()
	s.latest = metrics
	s.ok = true
	s.mu.Unlock()
}
