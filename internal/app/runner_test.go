package app

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"checkloader/internal/checkconfig"
	"checkloader/internal/clock"
	"checkloader/internal/engine"
	"checkloader/internal/events"
	"checkloader/internal/ledger"
	"checkloader/internal/notify"
	"checkloader/internal/pingdom"

	"github.com/google/go-cmp/cmp"
)

const runnerDoc = `
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
  shop:
    rootUrl: https://shop.example.com
    pathParts:
      region:
        us: {}
        eu: {}
        ap: {}
    checks:
      health:
        forEach:
          region: {}
`

const runID = "20240101_12000000"

func generate(t *testing.T) *engine.Result {
	t.Helper()

	doc, err := checkconfig.Parse([]byte(runnerDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	result, err := engine.NewExpander(nil, runID, nil).Expand(doc)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	return result
}

func TestCreateCountsCreatedAndFailed(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{failFor: map[string]bool{"/eu": true}}
	publisher := &fakePublisher{}
	reporter := &fakeReporter{}
	prompter := &scriptedPrompter{answer: "Y"}
	store := ledger.NewMemoryStore()
	runner := NewRunner(Deps{
		RunID:       runID,
		Clock:       clock.Fixed(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		Transport:   transport,
		Ledger:      store,
		Events:      publisher,
		Reporter:    reporter,
		Prompter:    prompter,
		Concurrency: 2,
	})

	summary, err := runner.Create(context.Background(), generate(t))
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("expected ErrCreateFailed, got %v", err)
	}
	if summary.Created != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !prompter.asked("CREATE the above checks") {
		t.Fatalf("create must prompt, asked %v", prompter.questions)
	}

	sort.Strings(transport.created)
	if diff := cmp.Diff([]string{"/ap", "/us"}, transport.created); diff != "" {
		t.Fatalf("unexpected created names (-want +got):\n%s", diff)
	}

	entries, err := store.List(context.Background(), runID)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d err=%v", len(entries), err)
	}
	if diff := cmp.Diff(map[string]int{events.KindCheckCreated: 2, events.KindCheckCreateFailed: 1}, publisher.kinds()); diff != "" {
		t.Fatalf("unexpected event kinds (-want +got):\n%s", diff)
	}
	if len(reporter.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reporter.reports))
	}
	report := reporter.reports[0]
	if report.Action != notify.ActionCreate || report.Created != 2 || report.Failed != 1 || len(report.Errors) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCreateAbortsWithoutYes(t *testing.T) {
	t.Parallel()

	for _, answer := range []string{"n", "", "yes", "Yy"} {
		transport := &fakeTransport{}
		runner := NewRunner(Deps{RunID: runID, Transport: transport, Prompter: &scriptedPrompter{answer: answer}})
		if _, err := runner.Create(context.Background(), generate(t)); !errors.Is(err, ErrAborted) {
			t.Fatalf("answer %q: expected ErrAborted, got %v", answer, err)
		}
		if len(transport.created) != 0 {
			t.Fatalf("answer %q: nothing may be created", answer)
		}
	}
}

func TestCreateAssumeYesSkipsPrompt(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	prompter := &scriptedPrompter{answer: "n"}
	runner := NewRunner(Deps{RunID: runID, Transport: transport, Prompter: prompter, AssumeYes: true})
	summary, err := runner.Create(context.Background(), generate(t))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if summary.Created != 3 || len(prompter.questions) != 0 {
		t.Fatalf("unexpected summary %+v questions=%v", summary, prompter.questions)
	}
}

func TestDeleteQualifiesConfirmsAndDeletes(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{listed: []pingdom.Check{
		{ID: 1, Name: "/us", Tags: []pingdom.Tag{{Name: "health"}, {Name: "prod"}}},
		{ID: 2, Name: "/eu", Tags: []pingdom.Tag{{Name: "health"}}},
	}}
	store := ledger.NewMemoryStore()
	if err := store.Put(context.Background(), ledger.Entry{RunID: runID, Name: "/us", CheckID: 1}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	publisher := &fakePublisher{}
	reporter := &fakeReporter{}
	prompter := &scriptedPrompter{answer: "y"}
	runner := NewRunner(Deps{RunID: runID, Transport: transport, Ledger: store, Events: publisher, Reporter: reporter, Prompter: prompter})

	summary, err := runner.Delete(context.Background(), []string{"health"}, []string{"PROD"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if summary.Matched != 1 || summary.Deleted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if diff := cmp.Diff([][]int64{{1}}, transport.deleted); diff != "" {
		t.Fatalf("unexpected delete calls (-want +got):\n%s", diff)
	}
	if !prompter.asked("DELETE the above checks") {
		t.Fatalf("delete must prompt")
	}
	if left, _ := store.List(context.Background(), ""); len(left) != 0 {
		t.Fatalf("ledger entry must be removed, got %+v", left)
	}
	if publisher.kinds()[events.KindCheckDeleted] != 1 {
		t.Fatalf("expected one deleted event, got %v", publisher.kinds())
	}
	if len(reporter.reports) != 1 || reporter.reports[0].Deleted != 1 {
		t.Fatalf("unexpected reports %+v", reporter.reports)
	}
}

func TestDeleteWithoutMatchesSkipsPrompt(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	prompter := &scriptedPrompter{answer: "y"}
	runner := NewRunner(Deps{RunID: runID, Transport: transport, Prompter: prompter})
	summary, err := runner.Delete(context.Background(), nil, []string{"nothing"})
	if err != nil || summary.Matched != 0 {
		t.Fatalf("unexpected summary %+v err=%v", summary, err)
	}
	if len(prompter.questions) != 0 || len(transport.deleted) != 0 {
		t.Fatalf("no prompt and no delete expected")
	}
}

func TestDeleteAbortLeavesChecks(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{listed: []pingdom.Check{{ID: 1, Name: "/us"}}}
	runner := NewRunner(Deps{RunID: runID, Transport: transport, Prompter: &scriptedPrompter{answer: "n"}})
	if _, err := runner.Delete(context.Background(), []string{"health"}, nil); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if len(transport.deleted) != 0 {
		t.Fatalf("nothing may be deleted")
	}
}

func TestDeleteListError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{listErr: errors.New("unavailable")}
	runner := NewRunner(Deps{RunID: runID, Transport: transport})
	if _, err := runner.Delete(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected list error")
	}
}
