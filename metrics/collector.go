package metrics

import (
	"sort"
	"sync"
	"time"

	"voxd/log"
)

// latencyRingSize bounds percentile memory regardless of session
// length.
const latencyRingSize = 256

// Collector keeps the live counters for the current session. All
// aggregates update in O(1) per segment so recording hot paths never
// stall on metrics.
type Collector struct {
	store *Store // nil runs in-memory only

	mu           sync.Mutex
	state        string
	sessionID    int64
	fallbackID   int64
	sessionStart time.Time
	segments     int
	words        int
	activeAudioS float64
	latencySumMs float64
	failures     int

	latencies [latencyRingSize]float64
	latCount  int // total recorded, ring index = latCount % size

	cpuPercent float64
	gpuMB      float64
	gpuPercent float64
}

func NewCollector(store *Store) *Collector {
	return &Collector{store: store, state: "idle"}
}

// StartSession resets the counters and allocates a session id. With
// a store the id is the sqlite rowid; without one a process-local
// counter stands in.
func (c *Collector) StartSession(at time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id int64
	if c.store != nil {
		dbID, err := c.store.BeginSession(at)
		if err != nil {
			log.Errorf("metrics: begin session: %v", err)
		} else {
			id = dbID
		}
	}
	if id == 0 {
		c.fallbackID++
		id = c.fallbackID
	} else {
		c.fallbackID = id
	}

	c.state = "recording"
	c.sessionID = id
	c.sessionStart = at
	c.segments = 0
	c.words = 0
	c.activeAudioS = 0
	c.latencySumMs = 0
	c.failures = 0
	c.latCount = 0
	return id
}

func (c *Collector) RecordSegment(seg Segment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != "recording" {
		return
	}
	c.segments++
	c.words += seg.Words
	c.activeAudioS += seg.AudioS
	c.latencySumMs += seg.LatencyMs
	c.latencies[c.latCount%latencyRingSize] = seg.LatencyMs
	c.latCount++

	if c.store != nil {
		if err := c.store.RecordSegment(c.sessionID, seg, time.Now()); err != nil {
			log.Errorf("metrics: record segment: %v", err)
		}
	}
}

func (c *Collector) RecordFailure() {
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// EndSession finalizes the current session and returns its summary.
func (c *Collector) EndSession(at time.Time) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	p50, p95 := c.percentilesLocked()
	sum := Summary{
		SessionID:    c.sessionID,
		Segments:     c.segments,
		Words:        c.words,
		ActiveAudioS: c.activeAudioS,
		TotalS:       at.Sub(c.sessionStart).Seconds(),
		WPM:          wpm(c.words, c.activeAudioS),
		AvgLatencyMs: mean(c.latencySumMs, c.segments),
		P50LatencyMs: p50,
		P95LatencyMs: p95,
		Failures:     c.failures,
	}
	c.state = "idle"

	if c.store != nil {
		if err := c.store.EndSession(sum, at); err != nil {
			log.Errorf("metrics: end session: %v", err)
		}
	}
	return sum
}

// SetResource feeds the latest system sample into snapshots.
func (c *Collector) SetResource(cpuPercent, gpuMB, gpuPercent float64) {
	c.mu.Lock()
	c.cpuPercent = cpuPercent
	c.gpuMB = gpuMB
	c.gpuPercent = gpuPercent
	c.mu.Unlock()
}

// Snapshot returns the live view. Safe to call from any goroutine.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:            c.state,
		Segments:         c.segments,
		Words:            c.words,
		WPM:              wpm(c.words, c.activeAudioS),
		LatencyMs:        mean(c.latencySumMs, c.segments),
		GPUMemoryMB:      c.gpuMB,
		GPUMemoryPercent: c.gpuPercent,
		CPUPercent:       c.cpuPercent,
	}
	if c.state == "recording" {
		id := c.sessionID
		snap.SessionID = &id
		snap.DurationS = time.Since(c.sessionStart).Seconds()
	}
	return snap
}

// Lifetime reads the all-time totals, zero without a store.
func (c *Collector) Lifetime() Lifetime {
	if c.store == nil {
		return Lifetime{}
	}
	lt, err := c.store.Lifetime()
	if err != nil {
		log.Errorf("metrics: %v", err)
		return Lifetime{}
	}
	return lt
}

func (c *Collector) percentilesLocked() (p50, p95 float64) {
	n := min(c.latCount, latencyRingSize)
	if n == 0 {
		return 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, c.latencies[:n])
	sort.Float64s(sorted)
	p50 = sorted[n/2]
	p95 = sorted[min(n*95/100, n-1)]
	return p50, p95
}

func wpm(words int, activeAudioS float64) float64 {
	if activeAudioS <= 0 {
		return 0
	}
	return float64(words) / activeAudioS * 60
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
