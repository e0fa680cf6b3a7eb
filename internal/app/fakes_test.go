package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"checkloader/internal/blueprint"
	"checkloader/internal/events"
	"checkloader/internal/notify"
	"checkloader/internal/pingdom"
)

type fakeTransport struct {
	mu       sync.Mutex
	nextID   int64
	failFor  map[string]bool
	created  []string
	listed   []pingdom.Check
	listErr  error
	deleted  [][]int64
	queryArg [2][]string
}

func (f *fakeTransport) CreateCheck(_ context.Context, b *blueprint.Blueprint) (pingdom.CheckRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[b.Name()] {
		return pingdom.CheckRef{}, errors.New("create check: unexpected status 400")
	}
	f.nextID++
	f.created = append(f.created, b.Name())
	return pingdom.CheckRef{ID: f.nextID, Name: b.Name()}, nil
}

func (f *fakeTransport) ListChecks(_ context.Context, checkNames, tagQualifiers []string) ([]pingdom.Check, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryArg = [2][]string{checkNames, tagQualifiers}
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]pingdom.Check, 0, len(f.listed))
	for _, check := range f.listed {
		if check.HasTags(tagQualifiers) {
			out = append(out, check)
		}
	}
	return out, nil
}

func (f *fakeTransport) DeleteChecks(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, append([]int64(nil), ids...))
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) kinds() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int)
	for _, event := range p.events {
		out[event.Kind]++
	}
	return out
}

type fakeReporter struct {
	reports []notify.Report
}

func (r *fakeReporter) Dispatch(_ context.Context, report notify.Report) error {
	r.reports = append(r.reports, report)
	return nil
}

type scriptedPrompter struct {
	answer    string
	questions []string
}

func (p *scriptedPrompter) Ask(question string) (string, error) {
	p.questions = append(p.questions, question)
	return p.answer, nil
}

func (p *scriptedPrompter) asked(fragment string) bool {
	for _, question := range p.questions {
		if strings.Contains(question, fragment) {
			return true
		}
	}
	return false
}
