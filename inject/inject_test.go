package inject

import (
	"reflect"
	"testing"
)

func TestParseOps(t *testing.T) {
	cases := []struct {
		in   string
		want []op
	}{
		{"plain text", []op{{text: "plain text"}}},
		{"a<KEY:enter>b", []op{{text: "a"}, {key: "enter"}, {text: "b"}}},
		{"<KEY:enter><KEY:enter>", []op{{key: "enter"}, {key: "enter"}}},
		{"tail<KEY:tab>", []op{{text: "tail"}, {key: "tab"}}},
		{"broken<KEY:enter", []op{{text: "broken<KEY:enter"}}},
		{"", nil},
	}
	for _, c := range cases {
		if got := parseOps(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("parseOps(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFakeRecords(t *testing.T) {
	f := NewFake()
	f.Inject("one")
	f.Inject("two")
	if got := f.Injected(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("injected = %v", got)
	}
}
