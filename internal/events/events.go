package events

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Event kinds.
const (
	KindCheckCreated      = "check.created"
	KindCheckCreateFailed = "check.create_failed"
	KindCheckDeleted      = "check.deleted"
)

// Event is one check lifecycle change published after a remote call.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run_id"`
	Site      string    `json:"site,omitempty"`
	Check     string    `json:"check,omitempty"`
	CheckID   int64     `json:"check_id,omitempty"`
	Name      string    `json:"name"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// BuildEventID creates deterministic id for one event.
// Republishing the same lifecycle change within the dedupe window yields one stream message.
// Params: event payload.
// Returns: stable SHA1-based id string.
func BuildEventID(event Event) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		event.Kind,
		event.RunID,
		event.Site,
		event.Check,
		event.Name,
		event.CheckID,
	)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// withID fills missing id and timestamp.
func withID(event Event, now time.Time) Event {
	if strings.TrimSpace(event.ID) == "" {
		event.ID = BuildEventID(event)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now.UTC()
	}
	return event
}

// Nop drops every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
