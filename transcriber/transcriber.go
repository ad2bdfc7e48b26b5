// Package transcriber converts speech segments to text.
package transcriber

import (
	"context"
	"time"
)

type Result struct {
	Text string
	// AudioS is the segment length as reported by the backend, zero
	// when the backend omits it.
	AudioS float64
	// APITime is the wall time of the backend call.
	APITime time.Duration
	// RateLimit is "remaining/limit" from the backend, if exposed.
	RateLimit string
}

type Transcriber interface {
	Name() string
	// Transcribe converts one mono S16 PCM segment to text. The
	// context bounds the call, a cancelled context abandons it.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error)
}
