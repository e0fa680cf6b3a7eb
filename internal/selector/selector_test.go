package selector

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmptyListAllowsAll(t *testing.T) {
	t.Parallel()

	names, err := Parse(" , ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !names.Empty() || !names.Allows("anything") {
		t.Fatalf("expected empty allow-list to allow everything")
	}
}

func TestExactAndGlobPatterns(t *testing.T) {
	t.Parallel()

	names, err := Parse("health, prod-*")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := map[string]bool{
		"health":     true,
		"healthz":    false,
		"prod-eu":    true,
		"staging-eu": false,
		"prod-":      true,
	}
	for name, want := range cases {
		if got := names.Allows(name); got != want {
			t.Fatalf("Allows(%q)=%v want %v", name, got, want)
		}
	}
	if diff := cmp.Diff([]string{"health", "prod-*"}, names.Patterns()); diff != "" {
		t.Fatalf("patterns mismatch (-want +got):\n%s", diff)
	}
	if names.String() != "health,prod-*" {
		t.Fatalf("unexpected string %q", names.String())
	}
}

func TestInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewFilter("[unclosed", ""); err == nil {
		t.Fatalf("expected invalid site pattern error")
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	f, err := NewFilter("site-a", "")
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}
	if !f.AllowSite("site-a") || f.AllowSite("site-b") {
		t.Fatalf("unexpected site filtering")
	}
	if !f.AllowCheck("anything") {
		t.Fatalf("empty check list must allow all checks")
	}
}

func TestHasPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		list    string
		want    string
		pattern bool
	}{
		{list: "health,api", pattern: false},
		{list: "", pattern: false},
		{list: "health, prod-*", want: "prod-*", pattern: true},
		{list: "v[12]", want: "v[12]", pattern: true},
		{list: "{a,b}", want: "{a", pattern: true},
	}
	for _, tc := range tests {
		got, pattern := HasPattern(tc.list)
		if got != tc.want || pattern != tc.pattern {
			t.Fatalf("HasPattern(%q)=(%q,%t) want (%q,%t)", tc.list, got, pattern, tc.want, tc.pattern)
		}
	}
}
