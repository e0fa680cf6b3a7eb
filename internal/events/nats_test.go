package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"checkloader/internal/config"
	"checkloader/test/testutil"

	"github.com/nats-io/nats.go"
)

func TestNATSPublisherDedupesIntegration(t *testing.T) {
	url := testutil.StartJetStream(t)

	cfg := config.EventsConfig{
		Enabled:    true,
		URL:        []string{url},
		Stream:     "CHECKLOADER_EVENTS_TEST",
		Subject:    "checkloader.events.test",
		TimeoutSec: 5,
	}
	publisher, err := NewNATSPublisher(cfg)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := Event{Kind: KindCheckCreated, RunID: "20240101_12000000", Site: "shop", Check: "health", Name: "/us", CheckID: 7}
	for i := 0; i < 2; i++ {
		if err := publisher.Publish(ctx, event); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	other := event
	other.Kind = KindCheckDeleted
	if err := publisher.Publish(ctx, other); err != nil {
		t.Fatalf("publish delete: %v", err)
	}

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	info, err := js.StreamInfo(cfg.Stream)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 2 {
		t.Fatalf("expected 2 deduped messages, got %d", info.State.Msgs)
	}

	msg, err := js.GetMsg(cfg.Stream, 1)
	if err != nil {
		t.Fatalf("get msg: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != KindCheckCreated || decoded.ID != BuildEventID(event) {
		t.Fatalf("unexpected first event %+v", decoded)
	}
}
