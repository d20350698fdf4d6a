// Package notify sends fire-and-forget events to the platform's notification
// service. Delivery failure never affects attempt or submission state: events
// are posted from a goroutine and errors are only logged.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nvkhoa/eduassess/config"
	"github.com/rs/zerolog/log"
)

const (
	EventSubmissionCreated = "submission_created"
	EventSubmissionGraded  = "submission_graded"
)

type Event struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	StudentID   string `json:"student_id"`
	RelatedID   uint   `json:"related_id"`
	RelatedType string `json:"related_type"` // "test_attempt" | "task_submission"
}

type Notifier interface {
	Publish(event Event)
}

// NewNotifier returns an HTTP notifier when NOTIFY_URL is configured, and a
// no-op one otherwise.
func NewNotifier(cfg *config.Config) Notifier {
	if cfg.Notify.URL == "" {
		log.Info().Msg("NOTIFY_URL not set, notifications disabled")
		return &noopNotifier{}
	}
	return &httpNotifier{
		url:    cfg.Notify.URL,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type noopNotifier struct{}

func (n *noopNotifier) Publish(Event) {}

type httpNotifier struct {
	url    string
	client *http.Client
}

func (n *httpNotifier) Publish(event Event) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	go func() {
		body, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Str("eventType", event.EventType).Msg("Notify: failed to encode event")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			log.Error().Err(err).Str("eventType", event.EventType).Msg("Notify: failed to build request")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			log.Warn().Err(err).Str("eventType", event.EventType).Str("eventID", event.EventID).
				Msg("Notify: delivery failed, event dropped")
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Warn().Int("status", resp.StatusCode).Str("eventType", event.EventType).
				Str("eventID", event.EventID).Msg("Notify: delivery rejected, event dropped")
		}
	}()
}
