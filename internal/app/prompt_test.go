package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestLinePrompterReadsOneLine(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	prompter := NewLinePrompter(strings.NewReader("  y \nrest\n"), &out)
	answer, err := prompter.Ask("proceed?:")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer != "y" || out.String() != "\n\nproceed?:" {
		t.Fatalf("unexpected answer %q output %q", answer, out.String())
	}

	next, err := prompter.Ask("again?:")
	if err != nil || next != "rest" {
		t.Fatalf("unexpected second answer %q err=%v", next, err)
	}
}

func TestLinePrompterEOF(t *testing.T) {
	t.Parallel()

	answer, err := NewLinePrompter(strings.NewReader(""), &bytes.Buffer{}).Ask("q")
	if err != nil || answer != "" {
		t.Fatalf("expected empty answer at EOF, got %q err=%v", answer, err)
	}
}

func TestConfirmed(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{"y": true, "Y": true, " y ": true, "n": false, "": false, "yes": false}
	for answer, want := range tests {
		if got := confirmed(answer); got != want {
			t.Fatalf("confirmed(%q)=%t want %t", answer, got, want)
		}
	}
}
