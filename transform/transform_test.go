package transform

import "testing"

func TestSpokenPunctuation(t *testing.T) {
	tr := New(nil, true)
	cases := []struct{ in, want string }{
		{"hello world period", "Hello world."},
		{"one comma two comma three", "One, two, three"},
		{"really question mark", "Really?"},
		{"stop exclamation mark", "Stop!"},
		{"first period second period", "First. Second."},
		{"", ""},
	}
	for _, c := range cases {
		if got := tr.Apply(c.in); got != c.want {
			t.Errorf("Apply(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMultiWordPhraseBeatsPrefix(t *testing.T) {
	tr := New(nil, false)
	if got := tr.Apply("any question mark"); got != "any?" {
		t.Errorf("got %q", got)
	}
	// "question" alone stays a word.
	if got := tr.Apply("good question here"); got != "good question here" {
		t.Errorf("got %q", got)
	}
}

func TestKeyTokens(t *testing.T) {
	tr := New(nil, false)
	if got := tr.Apply("first line new line second line"); got != "first line<KEY:enter>second line" {
		t.Errorf("got %q", got)
	}
	if got := tr.Apply("new paragraph"); got != "<KEY:enter><KEY:enter>" {
		t.Errorf("got %q", got)
	}
}

func TestRecognizerPunctuationStillMatches(t *testing.T) {
	// Whisper often emits "period." with its own full stop attached.
	tr := New(nil, false)
	if got := tr.Apply("done period."); got != "done." {
		t.Errorf("got %q", got)
	}
}

func TestCustomRules(t *testing.T) {
	tr := New(map[string]string{
		"my email": "dev@example.com",
		"comma":    "", // disable a default
	}, false)
	if got := tr.Apply("send to my email"); got != "send to dev@example.com" {
		t.Errorf("got %q", got)
	}
	if got := tr.Apply("one comma two"); got != "one comma two" {
		t.Errorf("disabled rule fired: %q", got)
	}
}

func TestCapitalizeCarriesAcrossKeyTokens(t *testing.T) {
	// The token itself is untouched, the sentence state passes over it.
	tr := New(nil, true)
	if got := tr.Apply("first period new line second"); got != "First.<KEY:enter>Second" {
		t.Errorf("got %q", got)
	}
}
