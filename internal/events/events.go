// Package events publishes domain events on NATS. Subjects carry the entity
// id as their last token; the payload is the same id as plain text.
package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher sends "<subject>.<id>". Publish uses the id as payload;
// PublishData carries a caller supplied one.
type Publisher interface {
	Publish(ctx context.Context, subject string, id uuid.UUID) error
	PublishData(ctx context.Context, subject string, id uuid.UUID, data []byte) error
}

// Subject builds "<base>.<id>".
func Subject(base string, id uuid.UUID) string {
	return base + "." + id.String()
}

// ParseSubject returns the trailing id of a subject built by Subject.
func ParseSubject(subject string) (uuid.UUID, error) {
	i := strings.LastIndexByte(subject, '.')
	return uuid.Parse(subject[i+1:])
}

type NatsPublisher struct {
	nc      *nats.Conn
	retries uint64
	logger  *slog.Logger
}

func NewNatsPublisher(nc *nats.Conn, retries uint64, logger *slog.Logger) *NatsPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NatsPublisher{nc: nc, retries: retries, logger: logger}
}

// Publish sends the event, retrying with exponential backoff. Events are
// notifications only; callers log and move on when this fails.
func (p *NatsPublisher) Publish(ctx context.Context, subject string, id uuid.UUID) error {
	return p.PublishData(ctx, subject, id, []byte(id.String()))
}

func (p *NatsPublisher) PublishData(ctx context.Context, subject string, id uuid.UUID, payload []byte) error {
	full := Subject(subject, id)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	op := func() error {
		return p.nc.Publish(full, payload)
	}
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, p.retries), ctx),
		func(err error, d time.Duration) {
			p.logger.Warn("event publish failed, retrying", "subject", full, "in", d, "err", err)
		})
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, uuid.UUID) error { return nil }

func (Nop) PublishData(context.Context, string, uuid.UUID, []byte) error { return nil }
