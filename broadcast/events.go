// Package broadcast streams daemon events to observer clients over a
// unix socket, one JSON object per line.
package broadcast

import (
	"encoding/json"
	"time"

	"voxd/metrics"
)

// StateChangeEvent announces an idle/recording transition.
type StateChangeEvent struct {
	Type      string  `json:"type"`
	State     string  `json:"state"`
	Timestamp float64 `json:"timestamp"`
}

type SessionStartEvent struct {
	Type      string  `json:"type"`
	SessionID int64   `json:"session_id"`
	Timestamp float64 `json:"timestamp"`
}

type SessionEndEvent struct {
	Type      string  `json:"type"`
	SessionID int64   `json:"session_id"`
	Timestamp float64 `json:"timestamp"`
}

// TranscriptionEvent carries one injected segment. Timestamp is a
// wall-clock string, what observer UIs show verbatim.
type TranscriptionEvent struct {
	Type      string  `json:"type"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	WPM       float64 `json:"wpm"`
	LatencyMs float64 `json:"latency_ms"`
	Words     int     `json:"words"`
}

// MetricsUpdateEvent mirrors the collector snapshot. SessionID is
// null while idle.
type MetricsUpdateEvent struct {
	Type             string  `json:"type"`
	State            string  `json:"state"`
	SessionID        *int64  `json:"session_id"`
	Segments         int     `json:"segments"`
	Words            int     `json:"words"`
	WPM              float64 `json:"wpm"`
	DurationS        float64 `json:"duration_s"`
	LatencyMs        float64 `json:"latency_ms"`
	GPUMemoryMB      float64 `json:"gpu_memory_mb"`
	GPUMemoryPercent float64 `json:"gpu_memory_percent"`
	CPUPercent       float64 `json:"cpu_percent"`
}

func unixF(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func newStateChange(state string, at time.Time) StateChangeEvent {
	return StateChangeEvent{Type: "state_change", State: state, Timestamp: unixF(at)}
}

func newSessionStart(id int64, at time.Time) SessionStartEvent {
	return SessionStartEvent{Type: "session_start", SessionID: id, Timestamp: unixF(at)}
}

func newSessionEnd(id int64, at time.Time) SessionEndEvent {
	return SessionEndEvent{Type: "session_end", SessionID: id, Timestamp: unixF(at)}
}

func newTranscription(text string, wpm, latencyMs float64, words int, at time.Time) TranscriptionEvent {
	return TranscriptionEvent{
		Type:      "transcription",
		Text:      text,
		Timestamp: at.Format("15:04:05"),
		WPM:       wpm,
		LatencyMs: latencyMs,
		Words:     words,
	}
}

func newMetricsUpdate(snap metrics.Snapshot) MetricsUpdateEvent {
	return MetricsUpdateEvent{
		Type:             "metrics_update",
		State:            snap.State,
		SessionID:        snap.SessionID,
		Segments:         snap.Segments,
		Words:            snap.Words,
		WPM:              snap.WPM,
		DurationS:        snap.DurationS,
		LatencyMs:        snap.LatencyMs,
		GPUMemoryMB:      snap.GPUMemoryMB,
		GPUMemoryPercent: snap.GPUMemoryPercent,
		CPUPercent:       snap.CPUPercent,
	}
}

// encode marshals an event into one newline-terminated wire line.
func encode(ev any) []byte {
	line, err := json.Marshal(ev)
	if err != nil {
		// Events are plain structs, marshal cannot fail at runtime.
		return nil
	}
	return append(line, '\n')
}
