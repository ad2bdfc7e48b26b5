//go:build windows

package inject

import "github.com/micmonay/keybd_event"

var namedKeys = map[string]int{
	"enter":     keybd_event.VK_ENTER,
	"tab":       keybd_event.VK_TAB,
	"backspace": keybd_event.VK_BACK,
	"delete":    keybd_event.VK_DELETE,
	"esc":       keybd_event.VK_ESC,
}

func (k *Keyboard) pressPaste() error {
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	k.kb.HasCTRL(true)
	return k.kb.Launching()
}
