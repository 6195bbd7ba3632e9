package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Multi fans a notification out to several transports. It fails only when
// every transport fails.
type Multi struct {
	transports []Transport
	log        *slog.Logger
}

var _ Transport = (*Multi)(nil)

// NewMulti creates a Multi over transports.
func NewMulti(log *slog.Logger, transports ...Transport) *Multi {
	return &Multi{transports: transports, log: log}
}

// Name implements Transport.
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.transports))
	for _, t := range m.transports {
		names = append(names, t.Name())
	}
	return strings.Join(names, "+")
}

// Publish implements Transport.
func (m *Multi) Publish(ctx context.Context, topic, subject string, body []byte) error {
	if len(m.transports) == 0 {
		return errors.New("no transports configured")
	}

	var errs []error
	for _, t := range m.transports {
		if err := t.Publish(ctx, topic, subject, body); err != nil {
			m.log.Warn("transport publish failed", "transport", t.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	if len(errs) == len(m.transports) {
		return fmt.Errorf("all transports failed: %w", errors.Join(errs...))
	}
	return nil
}
