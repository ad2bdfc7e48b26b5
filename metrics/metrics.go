// Package metrics tracks per-session dictation statistics and
// persists them to sqlite.
package metrics

// Segment is one transcribed utterance's worth of numbers.
type Segment struct {
	Seq       int
	AudioS    float64
	Words     int
	SttMs     float64
	LatencyMs float64
}

// Snapshot is the live view pushed to observers. SessionID is nil
// while idle.
type Snapshot struct {
	State            string
	SessionID        *int64
	Segments         int
	Words            int
	WPM              float64
	DurationS        float64
	LatencyMs        float64
	GPUMemoryMB      float64
	GPUMemoryPercent float64
	CPUPercent       float64
}

// Summary closes out a session.
type Summary struct {
	SessionID    int64
	Segments     int
	Words        int
	ActiveAudioS float64
	TotalS       float64
	WPM          float64
	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	Failures     int
}

// Lifetime aggregates across all sessions ever recorded.
type Lifetime struct {
	Sessions     int64
	Segments     int64
	Words        int64
	ActiveAudioS float64
}
