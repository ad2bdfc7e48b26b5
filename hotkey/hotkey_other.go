//go:build !linux

package hotkey

import (
	"fmt"

	xhotkey "golang.design/x/hotkey"
)

// keys supported outside linux. The library wants modifiers, so bare
// function keys map straight through.
var xKeys = map[string]xhotkey.Key{
	"KEY_F1":  xhotkey.KeyF1,
	"KEY_F2":  xhotkey.KeyF2,
	"KEY_F3":  xhotkey.KeyF3,
	"KEY_F4":  xhotkey.KeyF4,
	"KEY_F5":  xhotkey.KeyF5,
	"KEY_F6":  xhotkey.KeyF6,
	"KEY_F7":  xhotkey.KeyF7,
	"KEY_F8":  xhotkey.KeyF8,
	"KEY_F9":  xhotkey.KeyF9,
	"KEY_F10": xhotkey.KeyF10,
	"KEY_F11": xhotkey.KeyF11,
	"KEY_F12": xhotkey.KeyF12,
}

type xHotkey struct {
	hk      *xhotkey.Hotkey
	toggles chan struct{}
	stop    chan struct{}
}

func New(key, _ string) (Hotkey, error) {
	k, ok := xKeys[key]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey %q", key)
	}
	return &xHotkey{
		hk:      xhotkey.New(nil, k),
		toggles: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.hk.Keydown():
				select {
				case h.toggles <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	close(h.stop)
	h.hk.Unregister()
}

func (h *xHotkey) Toggles() <-chan struct{} {
	return h.toggles
}

// Diagnose has nothing useful to check on this platform.
func Diagnose() (string, error) {
	return "system hotkey API", nil
}
