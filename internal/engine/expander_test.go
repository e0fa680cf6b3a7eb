package engine

import (
	"errors"
	"testing"

	"checkloader/internal/blueprint"
	"checkloader/internal/catalog"
	"checkloader/internal/checkconfig"
	"checkloader/internal/selector"

	"github.com/google/go-cmp/cmp"
)

const expanderDoc = `
defaults:
  intervalMinutes: 5
  timeoutMs: 30000
  notifyAfterFailures: 2
  notifyAgainEvery: 0
  notifyWhenBackUp: true
  priority: low
  regions: [NA]
  teamIds: []
  userIds: []
  integrationIds: []
  customMessage: null
sites:
  example:
    rootUrl: https://example.com
    pathParts:
      region:
        us: {}
        eu: {}
    checks:
      X:
        forEach:
          region:
            intervalMinutes: 10
      Y:
        for:
          region: {}
  other:
    rootUrl: http://other.example.org
    pathParts:
      env:
        prod: {}
    checks:
      Z:
        forEach:
          env: {}
`

func parseDoc(t *testing.T, raw string) checkconfig.Document {
	t.Helper()
	doc, err := checkconfig.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestExpanderConcreteScenario(t *testing.T) {
	t.Parallel()

	result, err := NewExpander(nil, "20240101_000000_00", nil).Expand(parseDoc(t, expanderDoc))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}

	items, ok := result.Get("example", "X")
	if !ok {
		t.Fatalf("missing example/X group")
	}
	if diff := cmp.Diff([]string{"/us", "/eu"}, paths(items)); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	for _, item := range items {
		if item.IntervalMinutes != 10 {
			t.Fatalf("expected level override interval 10, got %d", item.IntervalMinutes)
		}
		if !item.Encrypted {
			t.Fatalf("expected https site to be encrypted")
		}
		if item.Site != "example" || item.CheckName != "X" {
			t.Fatalf("unexpected identity %q/%q", item.Site, item.CheckName)
		}
	}

	other, ok := result.Get("other", "Z")
	if !ok || len(other) != 1 || other[0].Encrypted {
		t.Fatalf("unexpected other/Z group: %+v", other)
	}
	if diff := cmp.Diff([]string{"20240101_000000_00", "Z", "other_example_org", "priority-low", "prod"}, other[0].Tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}

	var order []string
	for _, group := range result.Groups() {
		order = append(order, group.Site+"/"+group.Check)
	}
	if diff := cmp.Diff([]string{"example/X", "other/Z"}, order); diff != "" {
		t.Fatalf("group order mismatch (-want +got):\n%s", diff)
	}
	if result.Len() != 3 || len(result.All()) != 3 {
		t.Fatalf("expected 3 blueprints, got %d", result.Len())
	}
}

func TestExpanderSkipsUnsupportedDirective(t *testing.T) {
	t.Parallel()

	result, err := NewExpander(nil, "run", nil).Expand(parseDoc(t, expanderDoc))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if _, ok := result.Get("example", "Y"); ok {
		t.Fatalf("unsupported directive must not produce a group")
	}
	skipped := result.Skipped()
	if len(skipped) != 1 || skipped[0].Check != "Y" || skipped[0].Directive != "for" {
		t.Fatalf("unexpected skipped list %+v", skipped)
	}
}

func TestExpanderAppliesSelector(t *testing.T) {
	t.Parallel()

	filter, err := selector.NewFilter("exam*", "X")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	result, err := NewExpander(nil, "run", filter).Expand(parseDoc(t, expanderDoc))
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	groups := result.Groups()
	if len(groups) != 1 || groups[0].Site != "example" || groups[0].Check != "X" {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestExpanderCatalogsArePerSite(t *testing.T) {
	t.Parallel()

	raw := `
defaults: {intervalMinutes: 1, timeoutMs: 1, notifyAfterFailures: 1, notifyAgainEvery: 0, notifyWhenBackUp: false, priority: p, regions: [], teamIds: [], userIds: [], integrationIds: [], customMessage: null}
sites:
  first:
    rootUrl: https://first.example
    pathParts:
      region: {us: {}}
    checks:
      a: {forEach: {region: {}}}
  second:
    rootUrl: https://second.example
    pathParts: {}
    checks:
      b: {forEach: {region: {}}}
`
	_, err := NewExpander(nil, "run", nil).Expand(parseDoc(t, raw))
	if err == nil {
		t.Fatalf("expected second site to miss the region catalog of first site")
	}
	var typeErr *catalog.UnknownCatalogTypeError
	if !errors.As(err, &typeErr) || typeErr.Type != "region" {
		t.Fatalf("expected unknown region type, got %v", err)
	}
}

func TestExpanderMissingFieldAbortsGeneration(t *testing.T) {
	t.Parallel()

	raw := `
defaults: {intervalMinutes: 1}
sites:
  s:
    rootUrl: https://s.example
    pathParts:
      region: {us: {}}
    checks:
      c: {forEach: {region: {}}}
`
	result, err := NewExpander(nil, "run", nil).Expand(parseDoc(t, raw))
	var missing *blueprint.MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredFieldError, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result on fatal error")
	}
}
