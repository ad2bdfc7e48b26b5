package inject

import "sync"

// Fake records injected text for tests.
type Fake struct {
	mu       sync.Mutex
	injected []string
	err      error
}

func NewFake() *Fake { return &Fake{} }

// Fail makes subsequent Inject calls return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *Fake) Inject(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.injected = append(f.injected, text)
	return nil
}

func (f *Fake) Injected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.injected))
	copy(out, f.injected)
	return out
}
