package catalog

import (
	"fmt"
	"sort"
)

// Segment is one named member of a segment type (e.g. "us" within "region").
// Params: segment name and optional metadata merged into checks built from it.
// Returns: immutable path segment value.
type Segment struct {
	Name     string
	Metadata map[string]any
}

// UnknownCatalogTypeError reports lookup of a segment type that was never registered.
type UnknownCatalogTypeError struct {
	Type string
}

func (e *UnknownCatalogTypeError) Error() string {
	return fmt.Sprintf("unknown path part type %q", e.Type)
}

// UnknownSegmentError reports lookup of a segment name absent from a registered type.
type UnknownSegmentError struct {
	Type string
	Name string
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("unknown path part %q in type %q", e.Name, e.Type)
}

// Catalog registers ordered path segments by segment type for one configuration root.
// Params: none; populated with Register.
// Returns: per-root segment registry.
type Catalog struct {
	types map[string]*entry
}

type entry struct {
	names    []string
	segments map[string]Segment
}

// New creates an empty catalog.
// Params: none.
// Returns: catalog without registered types.
func New() *Catalog {
	return &Catalog{types: make(map[string]*entry)}
}

// Register stores segments for one type, replacing any previous registration of the type.
// Params: segment type key and segments in declaration order.
// Returns: catalog updated in place.
func (c *Catalog) Register(segmentType string, segments []Segment) {
	e := &entry{
		names:    make([]string, 0, len(segments)),
		segments: make(map[string]Segment, len(segments)),
	}
	for _, segment := range segments {
		if _, dup := e.segments[segment.Name]; !dup {
			e.names = append(e.names, segment.Name)
		}
		e.segments[segment.Name] = Segment{Name: segment.Name, Metadata: CloneMap(segment.Metadata)}
	}
	c.types[segmentType] = e
}

// Names lists segment names of one type in declaration order.
// Params: segment type key.
// Returns: copied name list or UnknownCatalogTypeError.
func (c *Catalog) Names(segmentType string) ([]string, error) {
	e, ok := c.types[segmentType]
	if !ok {
		return nil, &UnknownCatalogTypeError{Type: segmentType}
	}
	return append([]string(nil), e.names...), nil
}

// Get returns one segment by type and name.
// Params: segment type key and segment name.
// Returns: segment copy or lookup error.
func (c *Catalog) Get(segmentType, name string) (Segment, error) {
	e, ok := c.types[segmentType]
	if !ok {
		return Segment{}, &UnknownCatalogTypeError{Type: segmentType}
	}
	segment, ok := e.segments[name]
	if !ok {
		return Segment{}, &UnknownSegmentError{Type: segmentType, Name: name}
	}
	return Segment{Name: segment.Name, Metadata: CloneMap(segment.Metadata)}, nil
}

// Types returns registered segment type keys sorted by name.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.types))
	for segmentType := range c.types {
		out = append(out, segmentType)
	}
	sort.Strings(out)
	return out
}
