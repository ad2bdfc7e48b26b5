// Package beep plays short audio cues so the user knows recording
// state without looking at a screen.
package beep

import (
	"math"
	"sync"
)

var disabled bool

// Disable turns all cues off, for headless and test runs.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error cue: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	startSamples []int16
	endSamples   []int16
	errorSamples []int16
	soundOnce    sync.Once
)

func initSound() {
	startSamples = generateTick(startFreq, 0.2, startVolume, startDecay)
	endSamples = generateTick(endFreq, 0.2, endVolume, endDecay)
	errorSamples = generateDoubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

// generateTick synthesizes a mono sine burst with exponential decay.
func generateTick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := generateTick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

func play(samples []int16) {
	if disabled || len(samples) == 0 {
		return
	}
	go playSamples(samples)
}

func PlayStart() {
	soundOnce.Do(initSound)
	play(startSamples)
}

func PlayEnd() {
	soundOnce.Do(initSound)
	play(endSamples)
}

func PlayError() {
	soundOnce.Do(initSound)
	play(errorSamples)
}
