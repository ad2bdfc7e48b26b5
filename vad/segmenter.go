// Package vad turns a continuous PCM stream into speech segments.
//
// Audio accumulates in a buffer while webrtcvad classifies 20ms
// frames. Once voice has been detected, a run of silence closes the
// segment and hands the buffered audio off for transcription.
package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	frameMs     = 20
	vadDebounce = 3 // consecutive speech frames to confirm voice
)

type Config struct {
	SampleRate     int
	Aggressiveness int // 0..3, webrtcvad mode
	SilenceS       float64
	MinSegmentS    float64
	MaxSegmentS    float64
}

type Segmenter struct {
	classify   func(frame []byte) bool
	cfg        Config
	frameBytes int
	maxBytes   int

	mu            sync.Mutex
	pending       []byte // bytes waiting for a full frame
	buf           []byte // accumulated segment audio
	voiceDetected bool
	speechRun     int
	speechFrames  int // speech frames in the current segment
	silenceFrames int
}

func New(cfg Config) (*Segmenter, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtcvad: %w", err)
	}
	if err := v.SetMode(cfg.Aggressiveness); err != nil {
		return nil, fmt.Errorf("webrtcvad mode %d: %w", cfg.Aggressiveness, err)
	}
	s := newWithClassifier(cfg, func(frame []byte) bool {
		active, err := v.Process(cfg.SampleRate, frame)
		if err != nil {
			return false
		}
		return active
	})
	return s, nil
}

func newWithClassifier(cfg Config, classify func([]byte) bool) *Segmenter {
	frameBytes := cfg.SampleRate * frameMs / 1000 * 2
	return &Segmenter{
		classify:   classify,
		cfg:        cfg,
		frameBytes: frameBytes,
		maxBytes:   int(cfg.MaxSegmentS * float64(cfg.SampleRate) * 2),
	}
}

// Push feeds captured PCM into the segmenter. When the buffered audio
// forms a complete segment it is returned with ok=true and internal
// state resets for the next utterance.
func (s *Segmenter) Push(data []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, data...)
	for len(s.pending) >= s.frameBytes {
		frame := s.pending[:s.frameBytes]
		s.pending = s.pending[s.frameBytes:]
		s.buf = append(s.buf, frame...)

		if s.classify(frame) {
			s.speechRun++
			s.speechFrames++
			s.silenceFrames = 0
			if s.speechRun >= vadDebounce {
				s.voiceDetected = true
			}
		} else {
			s.speechRun = 0
			s.silenceFrames++
		}

		if seg, ok := s.maybeEmit(); ok {
			return seg, true
		}
	}
	return nil, false
}

func (s *Segmenter) maybeEmit() ([]byte, bool) {
	if s.voiceDetected && len(s.buf) >= s.maxBytes {
		return s.emit(), true
	}
	silenceS := float64(s.silenceFrames*frameMs) / 1000
	speechS := float64(s.speechFrames*frameMs) / 1000
	if s.voiceDetected && silenceS >= s.cfg.SilenceS && speechS >= s.cfg.MinSegmentS {
		return s.emit(), true
	}
	// Silence-only audio is worthless, keep just enough leading
	// context so the start of an utterance is never clipped.
	if !s.voiceDetected && len(s.buf) > s.maxBytes {
		keep := int(s.cfg.SilenceS * float64(s.cfg.SampleRate) * 2)
		if keep < len(s.buf) {
			s.buf = append(s.buf[:0:0], s.buf[len(s.buf)-keep:]...)
		}
	}
	return nil, false
}

func (s *Segmenter) emit() []byte {
	seg := s.buf
	s.buf = nil
	s.voiceDetected = false
	s.speechRun = 0
	s.speechFrames = 0
	s.silenceFrames = 0
	return seg
}

// Flush closes out a partial segment at end of recording. The usual
// minimum is relaxed to half so a trailing word is not lost when the
// user toggles off mid-utterance. Returns nil,false when nothing
// speech-bearing is buffered.
func (s *Segmenter) Flush() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.voiceDetected || s.speechFrames*frameMs < int(s.cfg.MinSegmentS*1000)/2 {
		s.reset()
		return nil, false
	}
	seg := s.emit()
	s.pending = nil
	return seg, true
}

// Reset discards all buffered audio and detection state.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Segmenter) reset() {
	s.pending = nil
	s.buf = nil
	s.voiceDetected = false
	s.speechRun = 0
	s.speechFrames = 0
	s.silenceFrames = 0
}
