package vad

import (
	"encoding/binary"
	"testing"
)

const testRate = 16000

func testConfig() Config {
	return Config{
		SampleRate:     testRate,
		Aggressiveness: 2,
		SilenceS:       2.0,
		MinSegmentS:    1.0,
		MaxSegmentS:    30.0,
	}
}

// loudFrames classifies any frame with a nonzero first sample as speech.
func loudFrames(frame []byte) bool {
	return binary.LittleEndian.Uint16(frame) != 0
}

func pcmSeconds(s float64, sample int16) []byte {
	n := int(s * testRate)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func TestSegmentEmittedAfterSilence(t *testing.T) {
	s := newWithClassifier(testConfig(), loudFrames)

	if _, ok := s.Push(pcmSeconds(3, 1000)); ok {
		t.Fatal("segment emitted during speech")
	}
	seg, ok := s.Push(pcmSeconds(2.5, 0))
	if !ok {
		t.Fatal("no segment after silence run")
	}
	// Segment carries the speech plus the silence tail that closed it.
	if got := float64(len(seg)) / 2 / testRate; got < 3 {
		t.Errorf("segment = %.1fs, want >= 3s of speech", got)
	}
}

func TestSilenceOnlyNeverEmits(t *testing.T) {
	s := newWithClassifier(testConfig(), loudFrames)
	for i := 0; i < 10; i++ {
		if _, ok := s.Push(pcmSeconds(5, 0)); ok {
			t.Fatal("segment emitted from pure silence")
		}
	}
	if _, ok := s.Flush(); ok {
		t.Fatal("flush produced a segment from pure silence")
	}
}

func TestShortBlipBelowMinIsHeld(t *testing.T) {
	cfg := testConfig()
	cfg.MinSegmentS = 2.0
	s := newWithClassifier(cfg, loudFrames)

	s.Push(pcmSeconds(0.5, 1000))
	if _, ok := s.Push(pcmSeconds(2.5, 0)); ok {
		t.Fatal("sub-minimum segment emitted")
	}
	// More speech arrives, total now exceeds the minimum.
	s.Push(pcmSeconds(2, 1000))
	if _, ok := s.Push(pcmSeconds(2.5, 0)); !ok {
		t.Fatal("combined segment not emitted")
	}
}

func TestMaxSegmentCapsRunawaySpeech(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSegmentS = 4.0
	s := newWithClassifier(cfg, loudFrames)

	var emitted int
	for i := 0; i < 10; i++ {
		if _, ok := s.Push(pcmSeconds(1, 1000)); ok {
			emitted++
		}
	}
	if emitted < 2 {
		t.Errorf("emitted %d capped segments from 10s of speech, want >= 2", emitted)
	}
}

func TestFlushEmitsPartialSegment(t *testing.T) {
	s := newWithClassifier(testConfig(), loudFrames)
	s.Push(pcmSeconds(1.5, 1000))

	seg, ok := s.Flush()
	if !ok {
		t.Fatal("flush dropped buffered speech")
	}
	if got := float64(len(seg)) / 2 / testRate; got < 1.4 {
		t.Errorf("flushed %.1fs, want ~1.5s", got)
	}
	// State is clean afterwards.
	if _, ok := s.Flush(); ok {
		t.Fatal("second flush emitted again")
	}
}

func TestResetDiscardsBuffer(t *testing.T) {
	s := newWithClassifier(testConfig(), loudFrames)
	s.Push(pcmSeconds(3, 1000))
	s.Reset()
	if _, ok := s.Flush(); ok {
		t.Fatal("flush after reset emitted")
	}
}

func TestRealVADConstruction(t *testing.T) {
	if _, err := New(testConfig()); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{SampleRate: testRate, Aggressiveness: 9}); err == nil {
		t.Error("invalid aggressiveness accepted")
	}
}
