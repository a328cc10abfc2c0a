package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/events"
)

const userAgent = "Mediaflow-Go/0.1.0"

// Ntfy delivers terminal job events to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

// NewNtfy builds an ntfy transport when a topic is configured, nil otherwise.
func NewNtfy(cfg *config.Config) *Ntfy {
	if cfg == nil {
		return nil
	}
	topic := strings.TrimSpace(cfg.Events.NtfyTopic)
	if topic == "" {
		return nil
	}

	timeout := time.Duration(cfg.Events.NtfyRequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Send implements events.Transport. Progress events are ignored.
func (n *Ntfy) Send(ctx context.Context, evt events.Event) error {
	if n == nil {
		return nil
	}
	switch evt.Kind {
	case events.KindComplete:
		return n.send(ctx, completedPayload(evt))
	case events.KindError:
		return n.send(ctx, failedPayload(evt))
	default:
		return nil
	}
}

func completedPayload(evt events.Event) payload {
	verdict := strings.TrimSpace(evt.Payload.SensitivityStatus)
	if verdict == "" {
		verdict = "unknown"
	}
	data := payload{
		title:   "Mediaflow - Video Ready",
		message: fmt.Sprintf("✅ Video %s processed for %s (sensitivity: %s)", evt.Payload.VideoID, evt.Organization, verdict),
		tags:    []string{"mediaflow", "video", "completed"},
	}
	if verdict == "flagged" {
		data.tags = append(data.tags, "flagged")
		data.priority = "high"
	}
	return data
}

func failedPayload(evt events.Event) payload {
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ Video %s failed for %s", evt.Payload.VideoID, evt.Organization)
	if msg := strings.TrimSpace(evt.Payload.Error); msg != "" {
		builder.WriteString(": ")
		builder.WriteString(msg)
	}
	return payload{
		title:    "Mediaflow - Processing Failed",
		message:  builder.String(),
		tags:     []string{"mediaflow", "error", "alert"},
		priority: "high",
	}
}

// TestNotification sends a low-priority test push.
func (n *Ntfy) TestNotification(ctx context.Context) error {
	if n == nil {
		return nil
	}
	return n.send(ctx, payload{
		title:    "Mediaflow - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"mediaflow", "test"},
		priority: "low",
	})
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
