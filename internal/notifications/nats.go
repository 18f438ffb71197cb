package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"lessonmedia/internal/logging"
)

const (
	defaultSubject = "lessonmedia.jobs"
	// FlushWithContext rejects contexts without a deadline.
	flushTimeout = 5 * time.Second
)

// natsConn is the subset of *nats.Conn used for publishing.
type natsConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

type natsService struct {
	conn    natsConn
	subject string
	now     func() time.Time
}

// envelope is the JSON body published for every event.
type envelope struct {
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

func dialNATS(url, subject string, logger *slog.Logger) (*natsService, error) {
	conn, err := nats.Connect(url,
		nats.Name("lessonmedia"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATSService(conn, subject), nil
}

func newNATSService(conn natsConn, subject string) *natsService {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = defaultSubject
	}
	return &natsService{conn: conn, subject: subject, now: time.Now}
}

// Subject returns the subject an event is published on.
func (n *natsService) Subject(event Event) string {
	return n.subject + "." + string(event)
}

func (n *natsService) Publish(ctx context.Context, event Event, payload Payload) error {
	body, err := json.Marshal(envelope{Event: event, Timestamp: n.now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode nats event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(event), body); err != nil {
		return fmt.Errorf("publish nats event: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats event: %w", err)
	}
	return nil
}

func (n *natsService) Close() error {
	n.conn.Close()
	return nil
}
