package events

import (
	"context"
	"testing"
	"time"
)

func TestBuildEventIDIsDeterministic(t *testing.T) {
	t.Parallel()

	base := Event{Kind: KindCheckCreated, RunID: "20240101_12000000", Site: "shop", Check: "health", Name: "/us", CheckID: 7}
	same := base
	same.Timestamp = time.Now()
	if BuildEventID(base) != BuildEventID(same) {
		t.Fatalf("timestamp must not affect id")
	}
	other := base
	other.Kind = KindCheckDeleted
	if BuildEventID(base) == BuildEventID(other) {
		t.Fatalf("kind must affect id")
	}
	if len(BuildEventID(base)) != 40 {
		t.Fatalf("expected hex sha1 id, got %q", BuildEventID(base))
	}
}

func TestWithIDFillsMissingFields(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 7200))
	event := withID(Event{Kind: KindCheckCreateFailed, RunID: "r", Name: "/us"}, at)
	if event.ID == "" || !event.Timestamp.Equal(at) || event.Timestamp.Location() != time.UTC {
		t.Fatalf("unexpected event %+v", event)
	}

	kept := withID(Event{ID: "fixed", Timestamp: at}, time.Now())
	if kept.ID != "fixed" || !kept.Timestamp.Equal(at) {
		t.Fatalf("existing fields must be kept: %+v", kept)
	}
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	var publisher Publisher = Nop{}
	if err := publisher.Publish(context.Background(), Event{}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("nop close: %v", err)
	}
}
