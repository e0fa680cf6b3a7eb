package selector

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Names is a compiled allow-list of glob patterns.
// Params: none; built with Parse.
// Returns: matcher where an empty list allows every name.
type Names struct {
	raw      []string
	patterns []glob.Glob
}

// Parse compiles a comma-separated pattern list.
// Params: comma-separated names or globs such as "prod-*".
// Returns: compiled allow-list or pattern error.
func Parse(list string) (Names, error) {
	out := Names{}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		g, err := glob.Compile(item)
		if err != nil {
			return Names{}, fmt.Errorf("invalid name pattern %q: %w", item, err)
		}
		out.raw = append(out.raw, item)
		out.patterns = append(out.patterns, g)
	}
	return out, nil
}

// Allows reports whether name passes the allow-list.
func (n Names) Allows(name string) bool {
	if len(n.patterns) == 0 {
		return true
	}
	for _, pattern := range n.patterns {
		if pattern.Match(name) {
			return true
		}
	}
	return false
}

// Empty reports whether no pattern was given.
func (n Names) Empty() bool {
	return len(n.patterns) == 0
}

// Patterns returns the raw pattern strings in input order.
func (n Names) Patterns() []string {
	return append([]string(nil), n.raw...)
}

// String renders the pattern list as given.
func (n Names) String() string {
	return strings.Join(n.raw, ",")
}

// Filter selects sites and checks by name.
// Params: site and check allow-lists.
// Returns: selector consumed by the expander.
type Filter struct {
	Sites  Names
	Checks Names
}

// NewFilter compiles site and check allow-lists.
// Params: comma-separated site patterns and check patterns.
// Returns: filter or pattern error.
func NewFilter(sites, checks string) (Filter, error) {
	siteNames, err := Parse(sites)
	if err != nil {
		return Filter{}, fmt.Errorf("sites: %w", err)
	}
	checkNames, err := Parse(checks)
	if err != nil {
		return Filter{}, fmt.Errorf("check names: %w", err)
	}
	return Filter{Sites: siteNames, Checks: checkNames}, nil
}

// AllowSite reports whether site should be processed.
func (f Filter) AllowSite(name string) bool { return f.Sites.Allows(name) }

// AllowCheck reports whether check entry should be processed.
func (f Filter) AllowCheck(name string) bool { return f.Checks.Allows(name) }

// globMeta are the characters that make a Parse entry a pattern rather than a literal name.
const globMeta = `*?[]{}\`

// HasPattern reports whether any entry of a comma-separated list uses glob syntax.
// Params: comma-separated names as given on the command line.
// Returns: the first pattern entry and true, or "" and false when every entry is literal.
func HasPattern(list string) (string, bool) {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if strings.ContainsAny(item, globMeta) {
			return item, true
		}
	}
	return "", false
}
