package events

import (
	"context"
	"time"
)

// Kind classifies an event.
type Kind string

const (
	KindProgress Kind = "progress"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// EventName returns the wire name, e.g. video:progress.
func (k Kind) EventName() string {
	return "video:" + string(k)
}

// Channel returns the organization channel name.
func Channel(organization string) string {
	return "org-" + organization
}

// Payload is the flat body delivered to subscribers.
type Payload struct {
	VideoID           string `json:"videoId"`
	Progress          int    `json:"progress"`
	Status            string `json:"status"`
	SensitivityStatus string `json:"sensitivityStatus,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Event is one published notification.
type Event struct {
	Sequence     uint64    `json:"seq"`
	Timestamp    time.Time `json:"ts"`
	Channel      string    `json:"channel"`
	Event        string    `json:"event"`
	Kind         Kind      `json:"-"`
	Organization string    `json:"-"`
	Payload      Payload   `json:"payload"`
}

// Terminal reports whether the event ends a job's stream.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

// Transport delivers an event to one kind of subscriber.
type Transport interface {
	Send(ctx context.Context, evt Event) error
}

// Publisher is what the orchestrator calls at every checkpoint.
type Publisher interface {
	Publish(ctx context.Context, organization string, kind Kind, payload Payload) error
}

// New builds an event for organization with the wire fields filled in.
func New(organization string, kind Kind, payload Payload) Event {
	return Event{
		Timestamp:    time.Now().UTC(),
		Channel:      Channel(organization),
		Event:        kind.EventName(),
		Kind:         kind,
		Organization: organization,
		Payload:      payload,
	}
}
