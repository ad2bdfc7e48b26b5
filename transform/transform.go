// Package transform rewrites raw transcription text into the form
// that gets typed: spoken punctuation becomes symbols, key phrases
// become <KEY:...> actions, sentences get capitalized.
package transform

import (
	"strings"
	"unicode"
)

// defaultRules maps spoken phrases (lowercase) to replacements.
// Multi-word phrases win over their single-word prefixes.
var defaultRules = map[string]string{
	"period":            ".",
	"full stop":         ".",
	"comma":             ",",
	"question mark":     "?",
	"exclamation mark":  "!",
	"exclamation point": "!",
	"colon":             ":",
	"semicolon":         ";",
	"open paren":        "(",
	"close paren":       ")",
	"open quote":        "\"",
	"close quote":       "\"",
	"hyphen":            "-",
	"dash":              "-",
	"ellipsis":          "...",
	"new line":          "<KEY:enter>",
	"newline":           "<KEY:enter>",
	"new paragraph":     "<KEY:enter><KEY:enter>",
	"tab key":           "<KEY:tab>",
	"backspace":         "<KEY:backspace>",
	"delete that":       "<KEY:backspace>",
	"escape key":        "<KEY:esc>",
}

type Transformer struct {
	rules      map[string]string
	maxPhrase  int
	capitalize bool
}

// New builds a transformer from the defaults overlaid with extra
// rules. An extra rule mapping to "" deletes a default.
func New(extra map[string]string, capitalize bool) *Transformer {
	rules := make(map[string]string, len(defaultRules)+len(extra))
	for k, v := range defaultRules {
		rules[k] = v
	}
	for k, v := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if v == "" {
			delete(rules, k)
			continue
		}
		rules[k] = v
	}
	maxPhrase := 1
	for k := range rules {
		if n := len(strings.Fields(k)); n > maxPhrase {
			maxPhrase = n
		}
	}
	return &Transformer{rules: rules, maxPhrase: maxPhrase, capitalize: capitalize}
}

// Apply rewrites one transcription. The result may contain <KEY:...>
// tokens for the injector to act on.
func (t *Transformer) Apply(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var out []string
	for i := 0; i < len(words); {
		matched := false
		// Longest phrase first so "question mark" beats "question".
		for n := min(t.maxPhrase, len(words)-i); n >= 1; n-- {
			phrase := strings.ToLower(stripTrailingPunct(strings.Join(words[i:i+n], " ")))
			if repl, ok := t.rules[phrase]; ok {
				out = append(out, repl)
				i += n
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, words[i])
			i++
		}
	}

	s := joinWithPunctuation(out)
	if t.capitalize {
		s = capitalizeSentences(s)
	}
	return s
}

// stripTrailingPunct drops punctuation the recognizer itself added so
// "period." still matches the "period" rule.
func stripTrailingPunct(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return r == '.' || r == ',' || r == '!' || r == '?'
	})
}

var noSpaceBefore = map[string]bool{
	".": true, ",": true, "?": true, "!": true,
	":": true, ";": true, ")": true, "...": true,
}

var noSpaceAfter = map[string]bool{
	"(": true,
}

func joinWithPunctuation(tokens []string) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 && !noSpaceBefore[tok] && !noSpaceAfter[tokens[i-1]] &&
			!strings.HasPrefix(tok, "<KEY:") && !strings.HasSuffix(tokens[i-1], ">") {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	return b.String()
}

func capitalizeSentences(s string) string {
	runes := []rune(s)
	capNext := true
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '<' {
			// Skip key tokens untouched.
			for i < len(runes) && runes[i] != '>' {
				i++
			}
			continue
		}
		if capNext && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			capNext = false
			continue
		}
		switch r {
		case '.', '!', '?':
			capNext = true
		}
	}
	return string(runes)
}
