package inject

import (
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// Keyboard injects by loading the clipboard and sending the paste
// chord. The previous clipboard content is restored afterwards.
type Keyboard struct {
	mu   sync.Mutex
	kb   keybd_event.KeyBonding
	init bool
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// pasteSettle is how long the target app gets to read the clipboard
// before we put the old content back.
const pasteSettle = 150 * time.Millisecond

func (k *Keyboard) Inject(text string) error {
	if text == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.init {
		kb, err := keybd_event.NewKeyBonding()
		if err != nil {
			return fmt.Errorf("keyboard init: %w", err)
		}
		k.kb = kb
		k.init = true
	}

	for _, o := range parseOps(text) {
		var err error
		if o.text != "" {
			err = k.pasteText(o.text)
		} else {
			err = k.pressKey(o.key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) pasteText(text string) error {
	saved, savedErr := clipboard.ReadAll()

	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	if err := k.pressPaste(); err != nil {
		return fmt.Errorf("paste chord: %w", err)
	}
	time.Sleep(pasteSettle)

	if savedErr == nil {
		// Best effort, losing the old clipboard is not fatal.
		clipboard.WriteAll(saved)
	}
	return nil
}

func (k *Keyboard) pressKey(name string) error {
	code, ok := namedKeys[name]
	if !ok {
		return fmt.Errorf("unknown key action %q", name)
	}
	k.kb.Clear()
	k.kb.SetKeys(code)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("pressing %s: %w", name, err)
	}
	return nil
}
