package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"mediaflow/internal/logging"
)

// EventHeader carries the wire event name on NATS messages.
const EventHeader = "Mediaflow-Event"

// NATSTransport publishes events to <prefix>.org-<organization> subjects.
type NATSTransport struct {
	conn   *nats.Conn
	prefix string
}

// DialNATS connects to a NATS server. Reconnects happen in the background;
// publishes during an outage are buffered by the client or fail fast.
func DialNATS(url, prefix string, logger *slog.Logger) (*NATSTransport, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("nats url is empty")
	}
	log := logging.NewComponentLogger(logger, "events.nats")
	conn, err := nats.Connect(url,
		nats.Name("mediaflowd"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.WarnWithContext(log, "nats disconnected", "nats_disconnected",
					logging.Error(err),
					logging.String(logging.FieldImpact, "organization events are not mirrored to NATS until reconnect"),
				)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", logging.String("server", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSTransport{conn: conn, prefix: prefix}, nil
}

// Subject returns the NATS subject for a channel.
func Subject(prefix, channel string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return channel
	}
	return prefix + "." + channel
}

// Send implements Transport.
func (t *NATSTransport) Send(_ context.Context, evt Event) error {
	if t == nil || t.conn == nil {
		return errors.New("nats transport not connected")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := nats.NewMsg(Subject(t.prefix, evt.Channel))
	msg.Header.Set(EventHeader, evt.Event)
	msg.Data = data
	if err := t.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (t *NATSTransport) Close() {
	if t == nil || t.conn == nil {
		return
	}
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
	}
}
