package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// Stream and subject layout: issues.<event>.<label>.
const (
	StreamName          = "ISSUES"
	SubjectAll          = "issues.>"
	SubjectCreated      = "issues.created.>"
	SubjectUnclassified = "issues.created.unclassified"
)

// Subject returns the subject an event about issue is published on.
func Subject(eventType string, issue *domain.Issue) string {
	return "issues." + eventType + "." + issue.Label()
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the issue stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url, "civiclens-publisher")
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectAll},
		Retention:  nats.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 10 * time.Minute,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

func (p *Publisher) PublishIssueCreated(ctx context.Context, issue *domain.Issue) error {
	return p.publish(ctx, domain.EventIssueCreated, issue)
}

func (p *Publisher) PublishIssueUpdated(ctx context.Context, issue *domain.Issue) error {
	return p.publish(ctx, domain.EventIssueUpdated, issue)
}

func (p *Publisher) publish(ctx context.Context, eventType string, issue *domain.Issue) error {
	data, err := json.Marshal(domain.IssueEvent{Type: eventType, Issue: issue})
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(eventType, issue))
	msg.Data = data
	if eventType == domain.EventIssueCreated {
		// dedupe retried publishes of the same issue
		msg.Header.Set(nats.MsgIdHdr, "created-"+issue.ID)
	}

	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// IsConnected reports the state of the underlying connection.
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return connect(url, "civiclens-relay")
}

func connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
