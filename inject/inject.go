// Package inject delivers transformed text into the focused
// application. The clipboard method copies the text and synthesizes a
// paste chord, which is fast and works across toolkits. <KEY:...>
// tokens from the transform layer become real key presses.
package inject

import (
	"strings"
)

type Injector interface {
	// Inject types one transcription into the focused window.
	Inject(text string) error
}

type op struct {
	text string // non-empty: paste this text
	key  string // non-empty: press this named key
}

// parseOps splits "foo<KEY:enter>bar" into paste and key-press steps.
func parseOps(s string) []op {
	var ops []op
	for len(s) > 0 {
		start := strings.Index(s, "<KEY:")
		if start < 0 {
			ops = append(ops, op{text: s})
			break
		}
		end := strings.Index(s[start:], ">")
		if end < 0 {
			ops = append(ops, op{text: s})
			break
		}
		if start > 0 {
			ops = append(ops, op{text: s[:start]})
		}
		ops = append(ops, op{key: s[start+5 : start+end]})
		s = s[start+end+1:]
	}
	return ops
}

// None discards text, for setups where another tool handles output.
type None struct{}

func (None) Inject(string) error { return nil }
