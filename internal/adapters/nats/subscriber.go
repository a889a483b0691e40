package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/civiclens/internal/core/domain"
)

// Subscriber consumes issue events from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS as name.
func NewSubscriber(url, name string) (*Subscriber, error) {
	conn, err := connect(url, name)
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
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeUnclassified delivers every stored issue that has no label yet.
// A handler error naks the message for redelivery, up to five attempts.
func (s *Subscriber) SubscribeUnclassified(ctx context.Context, handler func(ctx context.Context, issue *domain.Issue) error) error {
	sub, err := s.js.Subscribe(SubjectUnclassified, func(msg *nats.Msg) {
		issue, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("dropping undecodable issue event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, issue); err != nil {
			slog.Warn("issue event handler failed", "issue_id", issue.ID, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("reclassifier"),
		nats.ManualAck(),
		nats.MaxDeliver(5),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectUnclassified, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribeCreated delivers every issue stored from now on, whatever its
// label. The consumer is ephemeral so each process sees every event;
// handler errors are logged and the event is not redelivered.
func (s *Subscriber) SubscribeCreated(ctx context.Context, handler func(ctx context.Context, issue *domain.Issue) error) error {
	sub, err := s.js.Subscribe(SubjectCreated, func(msg *nats.Msg) {
		issue, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Warn("dropping undecodable issue event", "subject", msg.Subject, "error", err)
			return
		}
		if err := handler(ctx, issue); err != nil {
			slog.Warn("issue event handler failed", "issue_id", issue.ID, "error", err)
		}
	},
		nats.DeliverNew(),
		nats.AckNone(),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectCreated, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

func decodeEvent(data []byte) (*domain.Issue, error) {
	var ev domain.IssueEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.Issue == nil || ev.Issue.ID == "" {
		return nil, fmt.Errorf("event without issue")
	}
	return ev.Issue, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
