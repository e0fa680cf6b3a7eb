package templatefmt

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		1500 * time.Millisecond: "1.5s",
		90 * time.Second:        "1.5m",
		2 * time.Hour:           "2.0h",
		-3 * time.Second:        "3.0s",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%v)=%q want %q", in, got, want)
		}
	}
	if got := FormatDuration("x"); got != "0.0s" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestComma(t *testing.T) {
	t.Parallel()

	if got := Comma(1234567); got != "1,234,567" {
		t.Fatalf("unexpected comma rendering %q", got)
	}
	if got := Comma("n/a"); got != "n/a" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestParseReportTemplateHelpers(t *testing.T) {
	t.Parallel()

	tpl, err := ParseReportTemplate("t", `{{ comma .N }} {{ join .Names "," }} {{ json .Names }} {{ fmtDuration .D }}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out strings.Builder
	err = tpl.Execute(&out, map[string]any{"N": 1000, "Names": []string{"a", "b"}, "D": 2 * time.Second})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.String(); got != `1,000 a,b ["a","b"] 2.0s` {
		t.Fatalf("unexpected render %q", got)
	}

	if _, err := ParseReportTemplate("bad", "{{ .X "); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestPlural(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want string
	}{
		{in: 1, want: "1 check"},
		{in: 3, want: "3 checks"},
		{in: int64(0), want: "0 checks"},
		{in: "many", want: "many check"},
	}
	for _, tc := range cases {
		if got := Plural(tc.in, "check"); got != tc.want {
			t.Fatalf("Plural(%v)=%q want %q", tc.in, got, tc.want)
		}
	}
}
