// Package notify publishes and decodes the message that hands a changed daily
// log over to the summarizer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"newsdigest/internal/logkey"
	"newsdigest/internal/metrics"
	"newsdigest/internal/model"
)

// SubjectPrefix starts the subject of every published notification.
const SubjectPrefix = "Pipeline Update: "

// Transport delivers an encoded notification. Delivery is at-least-once and unordered.
type Transport interface {
	Name() string
	Publish(ctx context.Context, topic, subject string, body []byte) error
}

// Notifier encodes NotificationMessages and publishes them on a topic.
type Notifier struct {
	transport Transport
	topic     string
	log       *slog.Logger
}

// New creates a Notifier.
func New(transport Transport, topic string, log *slog.Logger) *Notifier {
	return &Notifier{transport: transport, topic: topic, log: log}
}

// Publish sends msg. Every failure wraps model.ErrNotifyUnavailable.
func (n *Notifier) Publish(ctx context.Context, msg model.NotificationMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrNotifyUnavailable, err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", model.ErrNotifyUnavailable, err)
	}

	err = n.transport.Publish(ctx, n.topic, Subject(msg), body)
	metrics.RecordNotification(n.transport.Name(), err)
	if err != nil {
		return fmt.Errorf("%w: publish to %s via %s: %w", model.ErrNotifyUnavailable, n.topic, n.transport.Name(), err)
	}

	n.log.Info("notification published",
		"topic", n.topic,
		"transport", n.transport.Name(),
		"key", msg.StoreKey,
		"new_articles", msg.NewArticleCount,
	)
	return nil
}

// Subject returns the human-readable subject for msg.
func Subject(msg model.NotificationMessage) string {
	day, err := logkey.DayOf(msg.StoreKey)
	if err != nil {
		day = logkey.Day(msg.Timestamp.Time)
	}
	return SubjectPrefix + day
}

// DecodeMessage parses and validates a notification body.
func DecodeMessage(body []byte) (model.NotificationMessage, error) {
	var msg model.NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.NotificationMessage{}, fmt.Errorf("%w: decode: %w", model.ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return model.NotificationMessage{}, err
	}
	return msg, nil
}
