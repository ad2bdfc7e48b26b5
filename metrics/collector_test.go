package metrics

import (
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	c := NewCollector(testStore(t))
	start := time.Now().Add(-10 * time.Second)
	id := c.StartSession(start)
	if id <= 0 {
		t.Fatalf("session id = %d", id)
	}

	c.RecordSegment(Segment{Seq: 1, AudioS: 3, Words: 12, SttMs: 400, LatencyMs: 420})
	c.RecordSegment(Segment{Seq: 2, AudioS: 2, Words: 8, SttMs: 300, LatencyMs: 310})

	snap := c.Snapshot()
	if snap.State != "recording" {
		t.Errorf("state = %q", snap.State)
	}
	if snap.SessionID == nil || *snap.SessionID != id {
		t.Errorf("snapshot session id = %v", snap.SessionID)
	}
	if snap.Segments != 2 || snap.Words != 20 {
		t.Errorf("segments/words = %d/%d", snap.Segments, snap.Words)
	}
	// 20 words over 5s of speech = 240 wpm.
	if snap.WPM != 240 {
		t.Errorf("wpm = %v", snap.WPM)
	}
	if snap.LatencyMs != 365 {
		t.Errorf("latency = %v", snap.LatencyMs)
	}

	sum := c.EndSession(time.Now())
	if sum.SessionID != id || sum.Words != 20 || sum.WPM != 240 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.TotalS < 9 {
		t.Errorf("totalS = %v", sum.TotalS)
	}
	if c.Snapshot().State != "idle" {
		t.Error("state not idle after end")
	}
	if c.Snapshot().SessionID != nil {
		t.Error("session id survives into idle")
	}
}

func TestSessionIDsIncrease(t *testing.T) {
	store := testStore(t)
	c := NewCollector(store)
	id1 := c.StartSession(time.Now())
	c.EndSession(time.Now())
	id2 := c.StartSession(time.Now())
	c.EndSession(time.Now())
	if id2 <= id1 {
		t.Errorf("ids not increasing: %d then %d", id1, id2)
	}

	// A second collector over the same store keeps increasing.
	c2 := NewCollector(store)
	id3 := c2.StartSession(time.Now())
	if id3 <= id2 {
		t.Errorf("id after reopen = %d, want > %d", id3, id2)
	}
}

func TestCollectorWithoutStore(t *testing.T) {
	c := NewCollector(nil)
	id1 := c.StartSession(time.Now())
	c.EndSession(time.Now())
	id2 := c.StartSession(time.Now())
	if id1 != 1 || id2 != 2 {
		t.Errorf("fallback ids = %d, %d", id1, id2)
	}
	if lt := c.Lifetime(); lt.Sessions != 0 {
		t.Errorf("lifetime without store = %+v", lt)
	}
}

func TestLatencyPercentiles(t *testing.T) {
	c := NewCollector(nil)
	c.StartSession(time.Now())
	for i := 1; i <= 100; i++ {
		c.RecordSegment(Segment{AudioS: 1, Words: 2, LatencyMs: float64(i * 10)})
	}
	sum := c.EndSession(time.Now())
	if sum.P50LatencyMs < 400 || sum.P50LatencyMs > 600 {
		t.Errorf("p50 = %v", sum.P50LatencyMs)
	}
	if sum.P95LatencyMs < 900 {
		t.Errorf("p95 = %v", sum.P95LatencyMs)
	}
}

func TestLatencyRingBounded(t *testing.T) {
	c := NewCollector(nil)
	c.StartSession(time.Now())
	// Far more segments than the ring holds must not break anything.
	for i := 0; i < latencyRingSize*4; i++ {
		c.RecordSegment(Segment{AudioS: 0.5, Words: 1, LatencyMs: 100})
	}
	sum := c.EndSession(time.Now())
	if sum.P95LatencyMs != 100 {
		t.Errorf("p95 = %v", sum.P95LatencyMs)
	}
	if sum.Segments != latencyRingSize*4 {
		t.Errorf("segments = %d", sum.Segments)
	}
}

func TestLifetimeAccumulates(t *testing.T) {
	store := testStore(t)
	c := NewCollector(store)
	for i := 0; i < 2; i++ {
		c.StartSession(time.Now())
		c.RecordSegment(Segment{Seq: 1, AudioS: 2, Words: 10, LatencyMs: 100})
		c.EndSession(time.Now())
	}
	lt := c.Lifetime()
	if lt.Sessions != 2 || lt.Segments != 2 || lt.Words != 20 {
		t.Errorf("lifetime = %+v", lt)
	}
	if lt.ActiveAudioS != 4 {
		t.Errorf("active audio = %v", lt.ActiveAudioS)
	}
}

func TestSegmentsIgnoredWhileIdle(t *testing.T) {
	c := NewCollector(nil)
	c.RecordSegment(Segment{Words: 5, AudioS: 1})
	if snap := c.Snapshot(); snap.Segments != 0 {
		t.Errorf("idle segment recorded: %+v", snap)
	}
}

func TestParseGPULine(t *testing.T) {
	used, pct := parseGPULine("2048, 8192\n")
	if used != 2048 || pct != 25 {
		t.Errorf("got %v MB, %v%%", used, pct)
	}
	if used, pct := parseGPULine("garbage"); used != 0 || pct != 0 {
		t.Errorf("garbage parsed: %v, %v", used, pct)
	}
}
