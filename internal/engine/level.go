package engine

import (
	"fmt"
	"math"
	"sort"

	"checkloader/internal/blueprint"
	"checkloader/internal/catalog"
	"checkloader/internal/checkconfig"
)

// Reserved keys of a forEach segment-type body.
const (
	keyExcept = "except"
	keyOnly   = "only"
	keyLimit  = "limit"
)

// InvalidDirectiveError reports a forEach directive whose shape cannot be parsed.
type InvalidDirectiveError struct {
	Reason string
}

func (e *InvalidDirectiveError) Error() string {
	return "invalid forEach directive: " + e.Reason
}

// Overrides holds filters and extra config keys of one expansion level.
// Params: except/only name sets, optional limit, and extra override fields.
// Returns: parsed level options.
type Overrides struct {
	Except []string
	Only   []string
	// HasOnly distinguishes an explicit empty only list from an absent one.
	HasOnly bool
	Limit   *int
	Extra   map[string]any
}

// Level is one node of a forEach tree bound to one segment type.
// Params: segment type, overrides, and optional single child level.
// Returns: executable cartesian expansion step.
type Level struct {
	SegmentType string
	Overrides   Overrides
	Child       *Level
}

// Scope carries per-check inputs shared by every level of one tree.
// Params: site catalog, blueprint seed, and document defaults.
// Returns: immutable expansion context.
type Scope struct {
	Catalog  *catalog.Catalog
	Seed     blueprint.Seed
	Defaults map[string]any
}

// Parents is the input set of one Expand call.
// The zero value is not valid; use Top or From.
type Parents struct {
	top   bool
	items []*blueprint.Blueprint
}

// Top marks the first level of a tree where blueprints are created rather than extended.
func Top() Parents {
	return Parents{top: true}
}

// From wraps blueprints produced by an outer level.
func From(items []*blueprint.Blueprint) Parents {
	return Parents{items: items}
}

// NewLevel parses one forEach directive body into a level tree.
// Params: mapping with exactly one segment-type key.
// Returns: root level or InvalidDirectiveError.
func NewLevel(directive any) (*Level, error) {
	body, ok := asMapping(directive)
	if !ok {
		return nil, &InvalidDirectiveError{Reason: fmt.Sprintf("expected mapping with one segment type, got %T", directive)}
	}
	if len(body) != 1 {
		keys := make([]string, 0, len(body))
		for key := range body {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return nil, &InvalidDirectiveError{Reason: fmt.Sprintf("expected exactly one segment type, got %v", keys)}
	}

	var segmentType string
	var rawOptions any
	for key, value := range body {
		segmentType, rawOptions = key, value
	}

	level := &Level{SegmentType: segmentType}
	if rawOptions == nil {
		return level, nil
	}
	options, ok := asMapping(rawOptions)
	if !ok {
		return nil, &InvalidDirectiveError{Reason: fmt.Sprintf("segment type %q body must be a mapping, got %T", segmentType, rawOptions)}
	}

	for key, value := range options {
		switch key {
		case checkconfig.DirectiveForEach:
			child, err := NewLevel(value)
			if err != nil {
				return nil, fmt.Errorf("%s.forEach: %w", segmentType, err)
			}
			level.Child = child
		case keyExcept:
			names, err := nameList(segmentType, key, value)
			if err != nil {
				return nil, err
			}
			level.Overrides.Except = names
		case keyOnly:
			names, err := nameList(segmentType, key, value)
			if err != nil {
				return nil, err
			}
			level.Overrides.Only = names
			level.Overrides.HasOnly = true
		case keyLimit:
			limit, err := limitValue(segmentType, value)
			if err != nil {
				return nil, err
			}
			level.Overrides.Limit = &limit
		default:
			if level.Overrides.Extra == nil {
				level.Overrides.Extra = make(map[string]any)
			}
			level.Overrides.Extra[key] = catalog.CloneValue(value)
		}
	}
	return level, nil
}

// Depth counts levels from this node to the innermost child.
func (l *Level) Depth() int {
	depth := 0
	for node := l; node != nil; node = node.Child {
		depth++
	}
	return depth
}

// Candidates lists permitted segment names of this level.
// Limit truncates declaration order before except and only are applied.
// Params: site catalog.
// Returns: ordered permitted names or UnknownCatalogTypeError.
func (l *Level) Candidates(cat *catalog.Catalog) ([]string, error) {
	names, err := cat.Names(l.SegmentType)
	if err != nil {
		return nil, err
	}
	if l.Overrides.Limit != nil && *l.Overrides.Limit < len(names) {
		names = names[:*l.Overrides.Limit]
	}

	except := toSet(l.Overrides.Except)
	only := toSet(l.Overrides.Only)
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, excluded := except[name]; excluded {
			continue
		}
		if l.Overrides.HasOnly {
			if _, included := only[name]; !included {
				continue
			}
		}
		out = append(out, name)
	}
	return out, nil
}

// Expand runs this level and its children.
// Params: shared scope and parents (Top for the first level).
// Returns: blueprints of the innermost level or the first build error.
func (l *Level) Expand(scope Scope, parents Parents) ([]*blueprint.Blueprint, error) {
	names, err := l.Candidates(scope.Catalog)
	if err != nil {
		return nil, err
	}

	var result []*blueprint.Blueprint
	if parents.top {
		result = make([]*blueprint.Blueprint, 0, len(names))
		for _, name := range names {
			segment, err := scope.Catalog.Get(l.SegmentType, name)
			if err != nil {
				return nil, err
			}
			built, err := blueprint.Build(scope.Seed, []map[string]any{scope.Defaults, segment.Metadata, l.Overrides.Extra}, segment)
			if err != nil {
				return nil, err
			}
			result = append(result, built)
		}
	} else {
		result = make([]*blueprint.Blueprint, 0, len(parents.items)*len(names))
		for _, parent := range parents.items {
			for _, name := range names {
				segment, err := scope.Catalog.Get(l.SegmentType, name)
				if err != nil {
					return nil, err
				}
				branch := parent.Clone()
				if err := branch.MergeAndApply([]map[string]any{segment.Metadata, l.Overrides.Extra}, segment); err != nil {
					return nil, err
				}
				result = append(result, branch)
			}
		}
	}

	if l.Child != nil {
		return l.Child.Expand(scope, From(result))
	}
	return result, nil
}

func asMapping(value any) (map[string]any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = item
		}
		return out, true
	default:
		return nil, false
	}
}

func nameList(segmentType, key string, value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{typed}, nil
	case []string:
		return append([]string{}, typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			switch item.(type) {
			case map[string]any, map[any]any, []any:
				return nil, &InvalidDirectiveError{Reason: fmt.Sprintf("%s.%s entries must be names", segmentType, key)}
			}
			out = append(out, fmt.Sprint(item))
		}
		return out, nil
	default:
		return nil, &InvalidDirectiveError{Reason: fmt.Sprintf("%s.%s must be a list of names, got %T", segmentType, key, value)}
	}
}

func limitValue(segmentType string, value any) (int, error) {
	var limit int
	switch typed := value.(type) {
	case int:
		limit = typed
	case int64:
		limit = int(typed)
	case uint64:
		limit = int(typed)
	case float64:
		if typed != math.Trunc(typed) {
			return 0, &InvalidDirectiveError{Reason: fmt.Sprintf("%s.limit must be an integer, got %v", segmentType, value)}
		}
		limit = int(typed)
	default:
		return 0, &InvalidDirectiveError{Reason: fmt.Sprintf("%s.limit must be an integer, got %T", segmentType, value)}
	}
	if limit < 0 {
		return 0, &InvalidDirectiveError{Reason: fmt.Sprintf("%s.limit must not be negative, got %d", segmentType, limit)}
	}
	return limit, nil
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}
