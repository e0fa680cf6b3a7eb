package engine

import (
	"fmt"
	"io"
	"log/slog"

	"checkloader/internal/blueprint"
	"checkloader/internal/catalog"
	"checkloader/internal/checkconfig"
)

// UnsupportedDirectiveError reports a check directive other than forEach.
type UnsupportedDirectiveError struct {
	Site      string
	Check     string
	Directive string
}

func (e *UnsupportedDirectiveError) Error() string {
	return fmt.Sprintf("sites[%s].checks[%s]: unknown check directive %q", e.Site, e.Check, e.Directive)
}

// Selector decides which sites and checks are expanded.
type Selector interface {
	AllowSite(name string) bool
	AllowCheck(name string) bool
}

type allowAll struct{}

func (allowAll) AllowSite(string) bool  { return true }
func (allowAll) AllowCheck(string) bool { return true }

// Group is the ordered blueprint list generated for one site check.
type Group struct {
	Site       string
	Check      string
	Blueprints []*blueprint.Blueprint
}

// Result aggregates generated blueprints keyed by site and check.
// Params: none; filled by Expander.
// Returns: groups in document order plus skipped directives.
type Result struct {
	groups  []Group
	index   map[groupKey]int
	skipped []UnsupportedDirectiveError
}

type groupKey struct {
	site  string
	check string
}

func newResult() *Result {
	return &Result{index: make(map[groupKey]int)}
}

func (r *Result) add(site, check string, items []*blueprint.Blueprint) {
	key := groupKey{site: site, check: check}
	if idx, ok := r.index[key]; ok {
		r.groups[idx].Blueprints = append(r.groups[idx].Blueprints, items...)
		return
	}
	r.index[key] = len(r.groups)
	r.groups = append(r.groups, Group{Site: site, Check: check, Blueprints: items})
}

// Groups returns site/check groups in document order.
func (r *Result) Groups() []Group {
	return append([]Group(nil), r.groups...)
}

// Get returns blueprints of one site check.
// Params: site and check names.
// Returns: blueprint list and presence flag.
func (r *Result) Get(site, check string) ([]*blueprint.Blueprint, bool) {
	idx, ok := r.index[groupKey{site: site, check: check}]
	if !ok {
		return nil, false
	}
	return r.groups[idx].Blueprints, true
}

// All flattens every group in document order.
func (r *Result) All() []*blueprint.Blueprint {
	out := make([]*blueprint.Blueprint, 0, r.Len())
	for _, group := range r.groups {
		out = append(out, group.Blueprints...)
	}
	return out
}

// Len counts generated blueprints across groups.
func (r *Result) Len() int {
	total := 0
	for _, group := range r.groups {
		total += len(group.Blueprints)
	}
	return total
}

// Skipped lists directives that were logged and ignored.
func (r *Result) Skipped() []UnsupportedDirectiveError {
	return append([]UnsupportedDirectiveError(nil), r.skipped...)
}

// Expander turns a checks document into blueprints.
// Params: logger, run identifier, and optional selector.
// Returns: orchestrator for one generation run.
type Expander struct {
	logger   *slog.Logger
	runID    string
	selector Selector
}

// NewExpander creates an expander for one run.
// Params: logger (nil discards), run identifier, selector (nil allows all).
// Returns: expander instance.
func NewExpander(logger *slog.Logger, runID string, selector Selector) *Expander {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if selector == nil {
		selector = allowAll{}
	}
	return &Expander{logger: logger, runID: runID, selector: selector}
}

// Expand generates every selected check of every selected site.
// Params: parsed checks document.
// Returns: result, or the first build error wrapped with site/check context.
func (e *Expander) Expand(doc checkconfig.Document) (*Result, error) {
	e.logger.Debug("generate checks", "run_id", e.runID, "sites", len(doc.Sites))

	result := newResult()
	for _, site := range doc.Sites {
		if !e.selector.AllowSite(site.Name) {
			e.logger.Debug("skip site", "site", site.Name, "reason", "not selected")
			continue
		}
		if err := e.expandSite(doc.Defaults, site, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// expandSite builds one site catalog and expands its checks.
// Params: document defaults, site, and result accumulator.
// Returns: first fatal build error.
func (e *Expander) expandSite(defaults map[string]any, site checkconfig.Site, result *Result) error {
	e.logger.Debug("read site", "site", site.Name)

	cat := catalog.New()
	for _, part := range site.PathParts {
		cat.Register(part.Type, part.Segments)
	}

	for _, check := range site.Checks {
		if !e.selector.AllowCheck(check.Name) {
			e.logger.Debug("skip check", "site", site.Name, "check", check.Name, "reason", "not selected")
			continue
		}
		e.logger.Debug("read check", "site", site.Name, "check", check.Name)

		for _, directive := range check.Directives {
			if directive.Key != checkconfig.DirectiveForEach {
				unsupported := UnsupportedDirectiveError{Site: site.Name, Check: check.Name, Directive: directive.Key}
				result.skipped = append(result.skipped, unsupported)
				e.logger.Error("skip check directive", "site", site.Name, "check", check.Name, "error", unsupported.Error())
				continue
			}

			level, err := NewLevel(directive.Body)
			if err != nil {
				return fmt.Errorf("sites[%s].checks[%s]: %w", site.Name, check.Name, err)
			}
			scope := Scope{
				Catalog: cat,
				Seed: blueprint.Seed{
					RunID:     e.runID,
					Site:      site.Name,
					CheckName: check.Name,
					BaseURL:   site.RootURL,
				},
				Defaults: defaults,
			}
			items, err := level.Expand(scope, Top())
			if err != nil {
				return fmt.Errorf("sites[%s].checks[%s]: %w", site.Name, check.Name, err)
			}
			e.logger.Debug("generated checks", "site", site.Name, "check", check.Name, "count", len(items), "depth", level.Depth())
			result.add(site.Name, check.Name, items)
		}
	}
	return nil
}
