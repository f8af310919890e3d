// Package monitor maintains process-wide runtime counters: request and error
// totals, a rolling response-time window, and periodically sampled process
// RSS/CPU figures. All mutation paths are safe under concurrent writers.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// WindowSize is the fixed capacity of the rolling sample window
// (288 samples at a 5-minute cadence covers roughly 24 hours).
const WindowSize = 288

// Sample is one periodic process measurement.
type Sample struct {
	At         time.Time
	RSSBytes   uint64
	CPUPercent float64
}

// Snapshot is a consistent copy of the monitor state for readers.
type Snapshot struct {
	StartedAt      time.Time
	RequestTotal   uint64
	ErrorTotal     uint64
	AvgResponseMS  float64
	PeakRSSBytes   uint64
	PeakCPUPercent float64
	Samples        []Sample
}

// Monitor is the process-wide counter bag. A single mutex guards every
// field; readers obtain a consistent snapshot.
type Monitor struct {
	mu sync.Mutex

	startedAt    time.Time
	requestTotal uint64
	errorTotal   uint64

	// rolling response-time window, milliseconds
	respTimes [WindowSize]float64
	respCount int
	respNext  int
	respSum   float64

	samples  []Sample
	peakRSS  uint64
	peakCPU  float64
	procSelf *process.Process
}

// New creates a Monitor anchored at now.
func New(now time.Time) *Monitor {
	p, _ := process.NewProcess(int32(os.Getpid()))
	return &Monitor{startedAt: now, procSelf: p}
}

// RecordRequest accounts one completed request with its duration.
func (m *Monitor) RecordRequest(elapsed time.Duration, isError bool) {
	ms := float64(elapsed.Microseconds()) / 1000.0

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestTotal++
	if isError {
		m.errorTotal++
	}

	if m.respCount == WindowSize {
		m.respSum -= m.respTimes[m.respNext]
	} else {
		m.respCount++
	}
	m.respTimes[m.respNext] = ms
	m.respSum += ms
	m.respNext = (m.respNext + 1) % WindowSize
}

// sampleOnce measures RSS and CPU% and appends to the window, evicting the
// oldest sample at capacity.
func (m *Monitor) sampleOnce(now time.Time) {
	if m.procSelf == nil {
		return
	}

	var s Sample
	s.At = now
	if mi, err := m.procSelf.MemoryInfo(); err == nil && mi != nil {
		s.RSSBytes = mi.RSS
	}
	if cpu, err := m.procSelf.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, s)
	if len(m.samples) > WindowSize {
		m.samples = m.samples[1:]
	}
	if s.RSSBytes > m.peakRSS {
		m.peakRSS = s.RSSBytes
	}
	if s.CPUPercent > m.peakCPU {
		m.peakCPU = s.CPUPercent
	}
}

// Snapshot returns a consistent copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	avg := 0.0
	if m.respCount > 0 {
		avg = m.respSum / float64(m.respCount)
	}

	samples := make([]Sample, len(m.samples))
	copy(samples, m.samples)

	return Snapshot{
		StartedAt:      m.startedAt,
		RequestTotal:   m.requestTotal,
		ErrorTotal:     m.errorTotal,
		AvgResponseMS:  avg,
		PeakRSSBytes:   m.peakRSS,
		PeakCPUPercent: m.peakCPU,
		Samples:        samples,
	}
}

// RunSampler runs the periodic sampler until ctx is cancelled. It takes one
// immediate sample and then one per interval. Call in its own goroutine;
// returns when ctx is done so the caller's join is bounded.
func (m *Monitor) RunSampler(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	m.sampleOnce(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("monitor sampler stopped")
			return
		case t := <-ticker.C:
			m.sampleOnce(t)
		}
	}
}
