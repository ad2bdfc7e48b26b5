package audio

import (
	"fmt"
	"strings"
)

// FindDevice resolves a configured device name to a capture device.
// Matching is a case-insensitive substring match so users can write
// "yeti" instead of the full ALSA description. An empty name selects
// the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	needle := strings.ToLower(name)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q (have %d devices)", name, len(devices))
}
