package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mediaflow/internal/api"
	"mediaflow/internal/events"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

const (
	maxLongPollWait   = 25 * time.Second
	sseKeepAlive      = 15 * time.Second
	defaultEventLimit = 200
)

// handleEvents serves the caller's organization channel. Clients sending
// Accept: text/event-stream get SSE; everyone else gets a long poll.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	query, wait, err := parseEventQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	query.Organization = principalFromContext(r.Context()).Organization

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamEvents(w, r, query)
		return
	}

	if wait > 0 {
		query.Wait = true
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		list, next, err := s.daemon.services.Hub.Fetch(ctx, query)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: nonNil(list), Next: next})
		return
	}
	list, next, err := s.daemon.services.Hub.Fetch(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: nonNil(list), Next: next})
}

// streamEvents writes events as SSE frames until the client leaves. With a
// video filter the stream ends after that video's terminal event.
func (s *apiServer) streamEvents(w http.ResponseWriter, r *http.Request, query events.Query) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("clear write deadline failed", logging.Error(err))
	}
	if id := strings.TrimSpace(r.Header.Get("Last-Event-ID")); id != "" {
		if seq, err := strconv.ParseUint(id, 10, 64); err == nil {
			query.Since = seq
		}
	}
	query.Wait = true

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		ctx, cancel := context.WithTimeout(r.Context(), sseKeepAlive)
		list, next, err := s.daemon.services.Hub.Fetch(ctx, query)
		cancel()
		if r.Context().Err() != nil {
			return
		}
		query.Since = next
		if errors.Is(err, context.DeadlineExceeded) {
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			continue
		}
		done := false
		for _, evt := range list {
			if err := writeSSE(w, evt); err != nil {
				return
			}
			if query.VideoID != "" && evt.Terminal() {
				done = true
			}
		}
		if err := rc.Flush(); err != nil || done {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, evt events.Event) error {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.Sequence, evt.Event, data)
	return err
}

func parseEventQuery(r *http.Request) (events.Query, time.Duration, error) {
	values := r.URL.Query()
	q := events.Query{
		VideoID: strings.TrimSpace(values.Get("video")),
		Limit:   defaultEventLimit,
	}
	if raw := values.Get("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, 0, services.Wrap(services.ErrValidation, "api", "events", "since must be a sequence number", nil)
		}
		q.Since = since
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			return q, 0, services.Wrap(services.ErrValidation, "api", "events", "limit must be a positive integer", nil)
		}
		q.Limit = limit
	}
	var wait time.Duration
	if raw := values.Get("wait"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return q, 0, services.Wrap(services.ErrValidation, "api", "events", "wait must be a number of seconds", nil)
		}
		wait = min(time.Duration(seconds)*time.Second, maxLongPollWait)
	}
	return q, wait, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("not positive: %d", n)
	}
	return n, nil
}

func nonNil(list []events.Event) []events.Event {
	if list == nil {
		return []events.Event{}
	}
	return list
}
