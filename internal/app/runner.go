package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"checkloader/internal/blueprint"
	"checkloader/internal/clock"
	"checkloader/internal/engine"
	"checkloader/internal/events"
	"checkloader/internal/ledger"
	"checkloader/internal/notify"
	"checkloader/internal/pingdom"
	"checkloader/internal/templatefmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// ErrCreateFailed is wrapped when at least one check could not be created.
var ErrCreateFailed = errors.New("check creation failed")

// Transport is the monitoring service surface used by runs.
type Transport interface {
	CreateCheck(ctx context.Context, b *blueprint.Blueprint) (pingdom.CheckRef, error)
	ListChecks(ctx context.Context, checkNames, tagQualifiers []string) ([]pingdom.Check, error)
	DeleteChecks(ctx context.Context, ids []int64) error
}

// Reporter delivers run reports.
type Reporter interface {
	Dispatch(ctx context.Context, report notify.Report) error
}

// Deps carries collaborators of one Runner.
// Zero-value ledger, events, reporter, and clock fields get in-memory or no-op defaults.
type Deps struct {
	RunID       string
	Logger      *slog.Logger
	Clock       clock.Clock
	Transport   Transport
	Ledger      ledger.Store
	Events      events.Publisher
	Reporter    Reporter
	Prompter    Prompter
	Out         io.Writer
	Concurrency int
	AssumeYes   bool
}

// Runner executes create and delete runs against the monitoring service.
type Runner struct {
	runID       string
	logger      *slog.Logger
	clock       clock.Clock
	transport   Transport
	ledger      ledger.Store
	events      events.Publisher
	reporter    Reporter
	prompter    Prompter
	out         io.Writer
	concurrency int
}

// CreateSummary counts one create run.
type CreateSummary struct {
	Created int
	Failed  int
	Refs    []pingdom.CheckRef
}

// DeleteSummary counts one delete run.
type DeleteSummary struct {
	Matched int
	Deleted int
}

// NewRunner builds a runner from deps.
func NewRunner(deps Deps) *Runner {
	r := &Runner{
		runID:       deps.RunID,
		logger:      deps.Logger,
		clock:       deps.Clock,
		transport:   deps.Transport,
		ledger:      deps.Ledger,
		events:      deps.Events,
		reporter:    deps.Reporter,
		prompter:    deps.Prompter,
		out:         deps.Out,
		concurrency: deps.Concurrency,
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.ledger == nil {
		r.ledger = ledger.NewMemoryStore()
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	if r.out == nil {
		r.out = io.Discard
	}
	if deps.AssumeYes || r.prompter == nil {
		r.prompter = autoConfirm{}
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}
	return r
}

// confirm asks question and returns ErrAborted unless the answer is "y".
func (r *Runner) confirm(question string) error {
	answer, err := r.prompter.Ask(question)
	if err != nil {
		return err
	}
	if !confirmed(answer) {
		r.logger.Debug("exiting, confirmation prompt input was: " + answer)
		return ErrAborted
	}
	return nil
}

// Create confirms and creates every generated blueprint with bounded concurrency.
// Failures are counted per check and never stop other creates.
// Params: context and expansion result.
// Returns: counters and ErrCreateFailed-wrapped error when any create failed.
func (r *Runner) Create(ctx context.Context, result *engine.Result) (CreateSummary, error) {
	if r.transport == nil {
		return CreateSummary{}, errors.New("transport is not configured")
	}
	if result.Len() == 0 {
		r.logger.Info("no checks generated, nothing to create")
		return CreateSummary{}, nil
	}
	if err := r.confirm(createPrompt); err != nil {
		return CreateSummary{}, err
	}

	started := r.clock.Now()
	var (
		mu      sync.Mutex
		summary CreateSummary
		names   []string
		errs    []string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for _, checkGroup := range result.Groups() {
		r.logger.Debug("transmitting new checks", "count", len(checkGroup.Blueprints), "site", checkGroup.Site, "check", checkGroup.Check)
		for _, item := range checkGroup.Blueprints {
			site := checkGroup.Site
			group.Go(func() error {
				ref, err := r.transport.CreateCheck(groupCtx, item)

				mu.Lock()
				names = append(names, item.Name())
				if err != nil {
					summary.Failed++
					errs = append(errs, item.Name()+": "+err.Error())
				} else {
					summary.Created++
					summary.Refs = append(summary.Refs, ref)
				}
				mu.Unlock()

				if err != nil {
					r.logger.Error("check create failed", "site", site, "name", item.Name(), "error", err.Error(), "check", item.Summary())
					r.publish(groupCtx, events.Event{
						Kind:  events.KindCheckCreateFailed,
						RunID: r.runID,
						Site:  site,
						Check: item.CheckName,
						Name:  item.Name(),
						Error: err.Error(),
					})
					return nil
				}

				r.logger.Debug("check created", "site", site, "name", item.Name(), "check_id", ref.ID, "check", item.Summary())
				r.record(groupCtx, site, item, ref)
				r.publish(groupCtx, events.Event{
					Kind:    events.KindCheckCreated,
					RunID:   r.runID,
					Site:    site,
					Check:   item.CheckName,
					CheckID: ref.ID,
					Name:    item.Name(),
				})
				return nil
			})
		}
	}
	_ = group.Wait()

	elapsed := r.clock.Now().Sub(started)
	r.logger.Info(
		"create completed",
		"created", humanize.Comma(int64(summary.Created)),
		"failed", humanize.Comma(int64(summary.Failed)),
		"run_id", r.runID,
		"elapsed", templatefmt.FormatDuration(elapsed),
	)
	r.report(ctx, notify.Report{
		RunID:     r.runID,
		Action:    notify.ActionCreate,
		Created:   summary.Created,
		Failed:    summary.Failed,
		Checks:    names,
		Errors:    errs,
		StartedAt: started,
		Duration:  elapsed,
	})

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d checks failed", ErrCreateFailed, summary.Failed, summary.Failed+summary.Created)
	}
	return summary, nil
}

// Delete lists checks matching any name and every qualifier, confirms, then deletes them by id.
// Params: context, check names, and tag qualifiers.
// Returns: counters or list/delete/prompt error.
func (r *Runner) Delete(ctx context.Context, checkNames, tagQualifiers []string) (DeleteSummary, error) {
	if r.transport == nil {
		return DeleteSummary{}, errors.New("transport is not configured")
	}
	started := r.clock.Now()
	checks, err := r.transport.ListChecks(ctx, checkNames, tagQualifiers)
	if err != nil {
		return DeleteSummary{}, fmt.Errorf("list checks: %w", err)
	}
	if len(checks) == 0 {
		r.logger.Info(
			"no matching checks found",
			"check_names", strings.Join(checkNames, ","),
			"tag_qualifiers", strings.Join(tagQualifiers, ","),
		)
		return DeleteSummary{}, nil
	}

	ids := make([]int64, 0, len(checks))
	names := make([]string, 0, len(checks))
	for _, check := range checks {
		r.logger.Debug("found check to delete", "id", check.ID, "hostname", check.Hostname, "name", check.Name, "tags", check.TagNames())
		ids = append(ids, check.ID)
		names = append(names, check.Name)
	}
	summary := DeleteSummary{Matched: len(checks)}

	if err := r.confirm(deletePrompt); err != nil {
		return summary, err
	}

	if err := r.transport.DeleteChecks(ctx, ids); err != nil {
		r.report(ctx, notify.Report{
			RunID:     r.runID,
			Action:    notify.ActionDelete,
			Failed:    len(ids),
			Checks:    names,
			Errors:    []string{err.Error()},
			StartedAt: started,
			Duration:  r.clock.Now().Sub(started),
		})
		return summary, err
	}
	summary.Deleted = len(ids)
	r.logger.Debug("delete checks ok", "count", humanize.Comma(int64(len(ids))))

	for _, check := range checks {
		if _, err := r.ledger.DeleteCheck(ctx, check.ID); err != nil {
			r.logger.Warn("ledger delete failed", "check_id", check.ID, "error", err.Error())
		}
		r.publish(ctx, events.Event{
			Kind:    events.KindCheckDeleted,
			RunID:   r.runID,
			CheckID: check.ID,
			Name:    check.Name,
		})
	}

	r.report(ctx, notify.Report{
		RunID:     r.runID,
		Action:    notify.ActionDelete,
		Deleted:   summary.Deleted,
		Checks:    names,
		StartedAt: started,
		Duration:  r.clock.Now().Sub(started),
	})
	return summary, nil
}

// ShowLedger writes recorded checks of runID, or all runs when empty, as a table.
func (r *Runner) ShowLedger(ctx context.Context, runID string) error {
	entries, err := r.ledger.List(ctx, runID)
	if err != nil {
		return fmt.Errorf("list ledger: %w", err)
	}
	return WriteLedger(r.out, entries)
}

func (r *Runner) record(ctx context.Context, site string, item *blueprint.Blueprint, ref pingdom.CheckRef) {
	if ref.ID <= 0 {
		r.logger.Warn("created check has no id, ledger entry skipped", "name", item.Name())
		return
	}
	entry := ledger.Entry{
		RunID:     r.runID,
		Site:      site,
		CheckName: item.CheckName,
		Name:      item.Name(),
		CheckID:   ref.ID,
		CreatedAt: r.clock.Now(),
	}
	if err := r.ledger.Put(ctx, entry); err != nil {
		r.logger.Warn("ledger put failed", "key", entry.Key(), "error", err.Error())
	}
}

func (r *Runner) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.clock.Now()
	}
	if err := r.events.Publish(ctx, event); err != nil {
		r.logger.Warn("event publish failed", "kind", event.Kind, "name", event.Name, "error", err.Error())
	}
}

func (r *Runner) report(ctx context.Context, report notify.Report) {
	if r.reporter == nil {
		return
	}
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.reporter.Dispatch(reportCtx, report); err != nil {
		r.logger.Warn("run report not delivered", "run_id", report.RunID, "error", err.Error())
	}
}
