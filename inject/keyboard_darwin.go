//go:build darwin

package inject

import "github.com/micmonay/keybd_event"

var namedKeys = map[string]int{
	"enter":     keybd_event.VK_ENTER,
	"tab":       keybd_event.VK_TAB,
	"backspace": keybd_event.VK_DELETE, // mac delete is backspace
	"delete":    keybd_event.VK_FORWARD_DELETE,
	"esc":       keybd_event.VK_ESC,
}

func (k *Keyboard) pressPaste() error {
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	k.kb.HasSuper(true) // Cmd+V on macOS
	return k.kb.Launching()
}
