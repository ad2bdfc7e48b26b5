//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
)

const inputEventSize = 24

// keyCodes maps config names to linux input event codes.
var keyCodes = map[string]uint16{
	"KEY_F1":         59,
	"KEY_F2":         60,
	"KEY_F3":         61,
	"KEY_F4":         62,
	"KEY_F5":         63,
	"KEY_F6":         64,
	"KEY_F7":         65,
	"KEY_F8":         66,
	"KEY_F9":         67,
	"KEY_F10":        68,
	"KEY_F11":        87,
	"KEY_F12":        88,
	"KEY_SCROLLLOCK": 70,
	"KEY_PAUSE":      119,
	"KEY_RIGHTCTRL":  97,
	"KEY_MENU":       127,
}

// linuxHotkey reads keyboards via evdev directly, which works on
// both X11 and Wayland but needs the user in the input group.
type linuxHotkey struct {
	code    uint16
	device  string // optional explicit /dev/input path
	toggles chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

func New(key, device string) (Hotkey, error) {
	code, ok := keyCodes[key]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey %q", key)
	}
	return &linuxHotkey{
		code:    code,
		device:  device,
		toggles: make(chan struct{}, 1),
	}, nil
}

func (h *linuxHotkey) Register() error {
	var keyboards []string
	if h.device != "" {
		keyboards = []string{h.device}
	} else {
		var err error
		keyboards, err = findKeyboards()
		if err != nil {
			return fmt.Errorf("finding keyboards: %w", err)
		}
		if len(keyboards) == 0 {
			return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
		}
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (h *linuxHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var held bool

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey || evCode != h.code {
				continue
			}

			switch evValue {
			case keyPress:
				if !held {
					held = true
					select {
					case h.toggles <- struct{}{}:
					default:
					}
				}
			case keyRelease:
				held = false
			}
		}
	}
}

func (h *linuxHotkey) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxHotkey) Toggles() <-chan struct{} {
	return h.toggles
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join("/dev/input", e.Name())
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, path)
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

// Diagnose checks whether the hotkey backend can work at all, for
// status output.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
