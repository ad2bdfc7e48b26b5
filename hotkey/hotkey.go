// Package hotkey turns a global key press into toggle events, so
// recording can start and stop without focusing a terminal.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	// Toggles delivers one value per hotkey press.
	Toggles() <-chan struct{}
}
