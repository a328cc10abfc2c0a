package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mediaflow/internal/logging"
)

// Fanout publishes each event to every transport. A failing transport does
// not stop delivery to the others.
type Fanout struct {
	transports []Transport
	logger     *slog.Logger
}

// NewFanout constructs a publisher over the given transports. Nil transports
// are skipped.
func NewFanout(logger *slog.Logger, transports ...Transport) *Fanout {
	f := &Fanout{logger: logging.NewComponentLogger(logger, "events")}
	for _, t := range transports {
		if t != nil {
			f.transports = append(f.transports, t)
		}
	}
	return f
}

// Publish implements Publisher.
func (f *Fanout) Publish(ctx context.Context, organization string, kind Kind, payload Payload) error {
	if f == nil {
		return nil
	}
	if organization == "" {
		return errors.New("publish: organization is required")
	}
	evt := New(organization, kind, payload)
	var errs []error
	for _, t := range f.transports {
		if err := t.Send(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", t, err))
		}
	}
	if len(errs) > 0 {
		f.logger.Debug("event delivery incomplete",
			logging.String("channel", evt.Channel),
			logging.String(logging.FieldEventType, evt.Event),
			logging.String(logging.FieldJobID, payload.VideoID),
			logging.Int("failed_transports", len(errs)),
		)
	}
	return errors.Join(errs...)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, Kind, Payload) error { return nil }
