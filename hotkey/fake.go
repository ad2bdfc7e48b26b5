package hotkey

type FakeHotkey struct {
	toggles chan struct{}
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{toggles: make(chan struct{}, 1)}
}

func (f *FakeHotkey) Register() error           { return nil }
func (f *FakeHotkey) Unregister()               {}
func (f *FakeHotkey) Toggles() <-chan struct{}  { return f.toggles }

func (f *FakeHotkey) SimPress() { f.toggles <- struct{}{} }
