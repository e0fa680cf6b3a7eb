package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkloader/internal/config"

	"github.com/nats-io/nats.go"
)

const eventsStreamMaxAge = 7 * 24 * time.Hour

// NATSPublisher publishes lifecycle events into a JetStream stream.
type NATSPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	now     func() time.Time
}

// NewNATSPublisher connects to NATS and ensures the events stream exists.
// Params: events settings from config.
// Returns: initialized publisher or setup error.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	nc, err := nats.Connect(strings.Join(cfg.URL, ","), nats.Name("checkloader-events"), nats.Timeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream(nats.MaxWait(timeout))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, subject: cfg.Subject, now: time.Now}, nil
}

// Open returns a NATS publisher when events are enabled, otherwise Nop.
func Open(cfg config.EventsConfig) (Publisher, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	return NewNATSPublisher(cfg)
}

// ensureStream creates the stream when missing.
// Params: JetStream context, stream name, and subject.
// Returns: stream lookup/create error.
func ensureStream(js nats.JetStreamContext, streamName, subject string) error {
	_, err := js.StreamInfo(streamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subject},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    eventsStreamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("add stream %q: %w", streamName, err)
	}
	return nil
}

// Publish sends one event with Nats-Msg-Id set to its id.
// Params: context and event; missing id and timestamp are filled.
// Returns: publish error.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	event = withID(event, p.now())
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Kind, err)
	}
	return nil
}

// Close closes publisher NATS connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	p.nc.Close()
	return nil
}
