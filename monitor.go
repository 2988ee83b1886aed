package soundmod

import (
	"sync"
	"time"
)

// ResourceMonitor tracks external tool processes and their outcomes.
type ResourceMonitor struct {
	mu     sync.RWMutex
	active map[int]process // PID -> process
	runs   map[ToolKind]int64
	failed map[ToolKind]int64
}

type process struct {
	tool  ToolKind
	start time.Time
}

// NewResourceMonitor creates an empty monitor.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		active: make(map[int]process),
		runs:   make(map[ToolKind]int64),
		failed: make(map[ToolKind]int64),
	}
}

// TrackProcess registers a started process.
func (m *ResourceMonitor) TrackProcess(tool ToolKind, pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[pid] = process{tool: tool, start: time.Now()}
	m.runs[tool]++
}

// UntrackProcess removes a finished process.
func (m *ResourceMonitor) UntrackProcess(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, pid)
}

// RecordFailure counts a failed invocation of tool.
func (m *ResourceMonitor) RecordFailure(tool ToolKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[tool]++
}

// ActiveProcesses returns the number of running processes.
func (m *ResourceMonitor) ActiveProcesses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// ToolStats counts the invocations of one tool.
type ToolStats struct {
	Runs     int64
	Failures int64
}

// MonitorStats is a snapshot of the monitor.
type MonitorStats struct {
	ActiveProcesses  int
	TotalRuns        int64
	FailedRuns       int64
	SuccessRate      float64
	OldestProcessAge time.Duration
	ByTool           map[ToolKind]ToolStats

	// Workers is the batch pool of the workspace, zero outside Workspace.Stats.
	Workers PoolStats
}

// GetStats returns current statistics.
func (m *ResourceMonitor) GetStats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MonitorStats{
		ActiveProcesses: len(m.active),
		ByTool:          make(map[ToolKind]ToolStats, len(m.runs)),
	}
	for tool, n := range m.runs {
		stats.TotalRuns += n
		stats.FailedRuns += m.failed[tool]
		stats.ByTool[tool] = ToolStats{Runs: n, Failures: m.failed[tool]}
	}

	if stats.TotalRuns > 0 {
		successful := stats.TotalRuns - stats.FailedRuns
		stats.SuccessRate = float64(successful) / float64(stats.TotalRuns) * 100.0
	} else {
		stats.SuccessRate = 100.0
	}

	if len(m.active) > 0 {
		oldest := time.Now()
		for _, p := range m.active {
			if p.start.Before(oldest) {
				oldest = p.start
			}
		}
		stats.OldestProcessAge = time.Since(oldest)
	}

	return stats
}

// Reset clears all statistics.
func (m *ResourceMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = make(map[int]process)
	m.runs = make(map[ToolKind]int64)
	m.failed = make(map[ToolKind]int64)
}
