package blueprint

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"checkloader/internal/catalog"
)

// Seed carries identity shared by every blueprint generated for one check entry.
// Params: run identifier, site name, check name, and site root URL.
// Returns: immutable build inputs.
type Seed struct {
	RunID     string
	Site      string
	CheckName string
	BaseURL   string
}

// Blueprint is one resolved check configuration accumulated across expansion levels.
// Params: merged configurable fields plus derived path/tags/encryption state.
// Returns: check definition handed to the transport layer.
type Blueprint struct {
	RunID     string `json:"runId"`
	Site      string `json:"site"`
	CheckName string `json:"checkName"`

	BaseURL             string   `json:"baseUrl"`
	Path                string   `json:"path"`
	IntervalMinutes     int      `json:"intervalMinutes"`
	TimeoutMs           int      `json:"timeoutMs"`
	NotifyAfterFailures int      `json:"notifyAfterFailures"`
	NotifyAgainEvery    int      `json:"notifyAgainEvery"`
	NotifyWhenBackUp    bool     `json:"notifyWhenBackUp"`
	Priority            string   `json:"priority"`
	Regions             []string `json:"regions"`
	TeamIDs             []string `json:"teamIds"`
	UserIDs             []string `json:"userIds"`
	IntegrationIDs      []string `json:"integrationIds"`
	CustomMessage       *string  `json:"customMessage"`
	Encrypted           bool     `json:"encrypted"`
	Tags                []string `json:"tags"`

	Extra map[string]any `json:"extra,omitempty"`

	present map[string]struct{}
}

// Build creates a top-level blueprint from ordered override layers and its first segment.
// Params: seed identity, layers in ascending precedence, and segment to apply.
// Returns: finalized blueprint, InvalidFieldError, or MissingRequiredFieldError.
func Build(seed Seed, layers []map[string]any, segment catalog.Segment) (*Blueprint, error) {
	b := &Blueprint{
		RunID:     seed.RunID,
		Site:      seed.Site,
		CheckName: seed.CheckName,
		BaseURL:   seed.BaseURL,
		present:   make(map[string]struct{}),
	}
	for _, layer := range layers {
		if err := b.merge(layer); err != nil {
			return nil, fmt.Errorf("check %q path %q: %w", seed.CheckName, "/"+segment.Name, err)
		}
	}
	// Top-level layers never move a check off its site root URL.
	b.BaseURL = seed.BaseURL
	for _, field := range requiredFields {
		if _, ok := b.present[field]; !ok {
			return nil, &MissingRequiredFieldError{Field: field, CheckName: seed.CheckName, Path: "/" + segment.Name}
		}
	}
	b.applySegment(segment.Name)
	b.finalize()
	return b, nil
}

// MergeAndApply overlays layers in order, appends the segment, and rebuilds derived state.
// Params: override layers in ascending precedence and next segment.
// Returns: InvalidFieldError when a layer value cannot be typed.
func (b *Blueprint) MergeAndApply(layers []map[string]any, segment catalog.Segment) error {
	for _, layer := range layers {
		if err := b.merge(layer); err != nil {
			return fmt.Errorf("check %q path %q: %w", b.CheckName, b.Path+"/"+segment.Name, err)
		}
	}
	b.applySegment(segment.Name)
	b.finalize()
	return nil
}

// applySegment extends path with one segment name.
func (b *Blueprint) applySegment(name string) {
	b.Path += "/" + name
}

// finalize recomputes every derived field from current state.
func (b *Blueprint) finalize() {
	b.Encrypted = isEncrypted(b.BaseURL)
	b.Tags = Tags(b.RunID, b.CheckName, b.BaseURL, b.Priority, b.Path)
}

// Name returns the check name used at the monitoring service.
func (b *Blueprint) Name() string {
	return b.Path
}

// Clone deep-copies the blueprint so branches never share containers.
// Params: none.
// Returns: independent blueprint copy.
func (b *Blueprint) Clone() *Blueprint {
	out := *b
	out.Regions = cloneStrings(b.Regions)
	out.TeamIDs = cloneStrings(b.TeamIDs)
	out.UserIDs = cloneStrings(b.UserIDs)
	out.IntegrationIDs = cloneStrings(b.IntegrationIDs)
	out.Tags = cloneStrings(b.Tags)
	out.Extra = catalog.CloneMap(b.Extra)
	if b.CustomMessage != nil {
		message := *b.CustomMessage
		out.CustomMessage = &message
	}
	out.present = make(map[string]struct{}, len(b.present))
	for key := range b.present {
		out.present[key] = struct{}{}
	}
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

// Summary renders every field on one line for dumps and debug logs.
func (b *Blueprint) Summary() string {
	message := "<none>"
	if b.CustomMessage != nil {
		message = fmt.Sprintf("%q", *b.CustomMessage)
	}
	return fmt.Sprintf(
		"%v -> %s%s every:%dm timeout:%dms notifyAfter:%d fails, priority:%s users:%v teams:%v integrations:%v again:%d intervals, whenBackUp:%t encrypted:%t message:%s tags:%v%s",
		b.Regions,
		b.BaseURL,
		b.Path,
		b.IntervalMinutes,
		b.TimeoutMs,
		b.NotifyAfterFailures,
		b.Priority,
		b.UserIDs,
		b.TeamIDs,
		b.IntegrationIDs,
		b.NotifyAgainEvery,
		b.NotifyWhenBackUp,
		b.Encrypted,
		message,
		b.Tags,
		formatExtra(b.Extra),
	)
}

// JSON encodes the blueprint for machine-readable dumps.
func (b *Blueprint) JSON() ([]byte, error) {
	return json.Marshal(b)
}

func formatExtra(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, extra[key]))
	}
	return " extra:{" + strings.Join(parts, " ") + "}"
}
