package checkconfig

import (
	"fmt"
	"os"
	"strings"

	"checkloader/internal/catalog"

	"gopkg.in/yaml.v3"
)

// DirectiveForEach is the only check directive the expander implements.
const DirectiveForEach = "forEach"

// Document is the parsed checks declaration file.
// Params: root defaults and sites in declaration order.
// Returns: input of the expansion engine.
type Document struct {
	Defaults map[string]any
	Sites    []Site
}

// Site is one configuration root with its own path catalog.
type Site struct {
	Name      string
	RootURL   string
	PathParts []PartType
	Checks    []Check
}

// PartType is one declared segment type with ordered segments.
type PartType struct {
	Type     string
	Segments []catalog.Segment
}

// Check is one named check entry with its directives in declaration order.
type Check struct {
	Name       string
	Directives []Directive
}

// Directive is one directive key of a check entry and its undecoded-by-schema body.
type Directive struct {
	Key  string
	Body any
}

// Load reads and parses checks declaration file.
// Params: path to YAML document.
// Returns: parsed document or read/parse/validation error.
func Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read checks config %q: %w", path, err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return Document{}, fmt.Errorf("checks config %q: %w", path, err)
	}
	return doc, nil
}

// Parse decodes YAML checks declarations while keeping mapping order.
// Params: raw YAML bytes.
// Returns: validated document.
func Parse(raw []byte) (Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return Document{}, fmt.Errorf("parse yaml: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return Document{}, fmt.Errorf("document is empty")
	}

	top, err := mappingPairs(root.Content[0], "document")
	if err != nil {
		return Document{}, err
	}

	doc := Document{Defaults: map[string]any{}}
	sawSites := false
	for _, item := range top {
		switch item.key {
		case "defaults":
			defaults, err := decodeMapping(item.value, "defaults")
			if err != nil {
				return Document{}, err
			}
			if defaults != nil {
				doc.Defaults = defaults
			}
		case "sites":
			sawSites = true
			sites, err := parseSites(item.value)
			if err != nil {
				return Document{}, err
			}
			doc.Sites = sites
		}
	}
	if !sawSites {
		return Document{}, fmt.Errorf("sites is required")
	}
	return doc, nil
}

func parseSites(node *yaml.Node) ([]Site, error) {
	pairs, err := mappingPairs(node, "sites")
	if err != nil {
		return nil, err
	}
	sites := make([]Site, 0, len(pairs))
	for _, item := range pairs {
		site, err := parseSite(item.key, item.value)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func parseSite(name string, node *yaml.Node) (Site, error) {
	where := "sites." + name
	pairs, err := mappingPairs(node, where)
	if err != nil {
		return Site{}, err
	}

	site := Site{Name: name}
	for _, item := range pairs {
		switch item.key {
		case "rootUrl":
			var rootURL string
			if err := resolve(item.value).Decode(&rootURL); err != nil {
				return Site{}, fmt.Errorf("%s.rootUrl must be a string: %w", where, err)
			}
			site.RootURL = strings.TrimSpace(rootURL)
		case "pathParts":
			parts, err := parsePathParts(where+".pathParts", item.value)
			if err != nil {
				return Site{}, err
			}
			site.PathParts = parts
		case "checks":
			checks, err := parseChecks(where+".checks", item.value)
			if err != nil {
				return Site{}, err
			}
			site.Checks = checks
		}
	}
	if site.RootURL == "" {
		return Site{}, fmt.Errorf("%s.rootUrl is required", where)
	}
	return site, nil
}

func parsePathParts(where string, node *yaml.Node) ([]PartType, error) {
	pairs, err := mappingPairs(node, where)
	if err != nil {
		return nil, err
	}
	out := make([]PartType, 0, len(pairs))
	for _, item := range pairs {
		partWhere := where + "." + item.key
		segmentPairs, err := mappingPairs(item.value, partWhere)
		if err != nil {
			return nil, err
		}
		part := PartType{Type: item.key, Segments: make([]catalog.Segment, 0, len(segmentPairs))}
		for _, segment := range segmentPairs {
			metadata, err := decodeMapping(segment.value, partWhere+"."+segment.key)
			if err != nil {
				return nil, err
			}
			part.Segments = append(part.Segments, catalog.Segment{Name: segment.key, Metadata: metadata})
		}
		out = append(out, part)
	}
	return out, nil
}

func parseChecks(where string, node *yaml.Node) ([]Check, error) {
	pairs, err := mappingPairs(node, where)
	if err != nil {
		return nil, err
	}
	out := make([]Check, 0, len(pairs))
	for _, item := range pairs {
		checkWhere := where + "." + item.key
		directivePairs, err := mappingPairs(item.value, checkWhere)
		if err != nil {
			return nil, err
		}
		check := Check{Name: item.key, Directives: make([]Directive, 0, len(directivePairs))}
		for _, directive := range directivePairs {
			var body any
			if err := resolve(directive.value).Decode(&body); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", checkWhere, directive.key, err)
			}
			check.Directives = append(check.Directives, Directive{Key: directive.key, Body: body})
		}
		out = append(out, check)
	}
	return out, nil
}

// pair is one key/value entry of a YAML mapping node.
type pair struct {
	key   string
	value *yaml.Node
}

// mappingPairs lists mapping entries in document order.
// Merge keys (<<) splice in the aliased mapping, or each mapping of a list with earlier
// items winning, ahead of the node's own keys; own keys override merged values in place.
// Params: mapping node and dotted location for messages.
// Returns: ordered key/value pairs; null node yields no pairs.
func mappingPairs(node *yaml.Node, where string) ([]pair, error) {
	node = resolve(node)
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping (line %d)", where, node.Line)
	}
	var merged []pair
	own := make([]pair, 0, len(node.Content)/2)
	seen := make(map[string]struct{}, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := resolve(node.Content[i])
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s has a non-scalar key (line %d)", where, keyNode.Line)
		}
		if keyNode.ShortTag() == "!!merge" {
			pairs, err := mergedPairs(node.Content[i+1], where)
			if err != nil {
				return nil, err
			}
			merged = append(merged, pairs...)
			continue
		}
		key := keyNode.Value
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s.%s is declared twice (line %d)", where, key, keyNode.Line)
		}
		seen[key] = struct{}{}
		own = append(own, pair{key: key, value: node.Content[i+1]})
	}
	if len(merged) == 0 {
		return own, nil
	}
	return overlayPairs(append(merged, own...)), nil
}

// mergedPairs expands the value of one merge key.
func mergedPairs(value *yaml.Node, where string) ([]pair, error) {
	value = resolve(value)
	switch value.Kind {
	case yaml.MappingNode:
		return mappingPairs(value, where)
	case yaml.SequenceNode:
		var out []pair
		for i := len(value.Content) - 1; i >= 0; i-- {
			item := resolve(value.Content[i])
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%s: merge list items must be mappings (line %d)", where, item.Line)
			}
			pairs, err := mappingPairs(item, where)
			if err != nil {
				return nil, err
			}
			out = append(out, pairs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s: merge value must be a mapping or a list of mappings (line %d)", where, value.Line)
	}
}

// overlayPairs keeps each key at its first position with the value of its last occurrence.
func overlayPairs(pairs []pair) []pair {
	out := make([]pair, 0, len(pairs))
	index := make(map[string]int, len(pairs))
	for _, item := range pairs {
		if pos, ok := index[item.key]; ok {
			out[pos].value = item.value
			continue
		}
		index[item.key] = len(out)
		out = append(out, item)
	}
	return out
}

func decodeMapping(node *yaml.Node, where string) (map[string]any, error) {
	node = resolve(node)
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping (line %d)", where, node.Line)
	}
	out := map[string]any{}
	if err := node.Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return out, nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}
