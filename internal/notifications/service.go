package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lessonmedia/internal/config"
	"lessonmedia/internal/logging"
)

const userAgent = "lessonmedia/0.1"

// Event names a job lifecycle milestone.
type Event string

const (
	EventJobStarted Event = "job_started"
	EventJobReady   Event = "job_ready"
	EventJobFailed  Event = "job_failed"
	EventTest       Event = "test"
)

// Payload carries event fields. Well-known keys: job_id, kind, run_id, url,
// stage, error, error_kind, elapsed_seconds.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds the configured transports. Connection failures for NATS
// are logged and the transport is skipped.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	logger = logging.NewComponentLogger(logger, "notifications")
	var services []Service

	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		services = append(services, &ntfyService{
			endpoint: topic,
			client:   &http.Client{Timeout: timeout},
		})
	}

	if url := strings.TrimSpace(cfg.Notifications.NATSURL); url != "" {
		svc, err := dialNATS(url, cfg.Notifications.NATSSubject, logger)
		if err != nil {
			logging.WarnWithContext(logger, "nats notifications disabled", "notifications_nats_unavailable",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.nats_url and that the server is running"),
				logging.String(logging.FieldImpact, "job events will not be published to NATS"),
			)
		} else {
			services = append(services, svc)
		}
	}

	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return multiService(services)
	}
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Close() error {
	var errs []error
	for _, svc := range m {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := formatNtfy(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) Close() error {
	return nil
}

func formatNtfy(event Event, payload Payload) (message, bool) {
	jobID := payload.String("job_id")
	kind := payload.String("kind")
	if kind == "" {
		kind = "job"
	}
	switch event {
	case EventJobReady:
		body := fmt.Sprintf("✅ %s ready: %s", kind, jobID)
		if url := payload.String("url"); url != "" {
			body += "\n" + url
		}
		return message{
			title: "Lessonmedia - Ready",
			body:  body,
			tags:  []string{"lessonmedia", kind, "ready"},
		}, true
	case EventJobFailed:
		var b strings.Builder
		fmt.Fprintf(&b, "❌ %s failed: %s", kind, jobID)
		if stage := payload.String("stage"); stage != "" {
			fmt.Fprintf(&b, " at %s", stage)
		}
		if detail := payload.String("error"); detail != "" {
			b.WriteString(": ")
			b.WriteString(detail)
		}
		return message{
			title:    "Lessonmedia - Failed",
			body:     b.String(),
			tags:     []string{"lessonmedia", kind, "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Lessonmedia - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"lessonmedia", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// String returns the value at key formatted as text, or "".
func (p Payload) String(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }
