package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake returns scripted results, one per call, for pipeline tests.
// When the script runs out the last entry repeats.
type Fake struct {
	mu      sync.Mutex
	script  []FakeResult
	calls   int
	latency time.Duration
}

type FakeResult struct {
	Text string
	Err  error
}

func NewFake(script ...FakeResult) *Fake {
	return &Fake{script: script}
}

// SetLatency makes every call sleep, for backpressure tests.
func (f *Fake) SetLatency(d time.Duration) {
	f.mu.Lock()
	f.latency = d
	f.mu.Unlock()
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	latency := f.latency
	f.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	if len(f.script) == 0 {
		return Result{}, nil
	}
	r := f.script[idx]
	if r.Err != nil {
		return Result{}, r.Err
	}
	audioS := float64(len(pcm)) / 2 / float64(sampleRate)
	return Result{Text: r.Text, AudioS: audioS, APITime: latency}, nil
}
