//go:build !linux

package beep

import (
	"encoding/binary"
	"time"

	"github.com/gen2brain/malgo"
)

func playSamples(samples []int16) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	pos := 0
	done := make(chan struct{})
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			for i := uint32(0); i < frameCount; i++ {
				var s int16
				if pos < len(samples) {
					s = samples[pos]
					pos++
				}
				binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
			}
			if pos >= len(samples) {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, config, callbacks)
	if err != nil {
		return
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return
	}
	select {
	case <-done:
		// Let the tail of the buffer drain.
		time.Sleep(100 * time.Millisecond)
	case <-time.After(2 * time.Second):
	}
}
