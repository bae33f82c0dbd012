package queue

import (
	"context"

	"github.com/kbforge/kbforge/internal/models"
)

// Publisher enqueues one IngestJob per independent unit of work. The
// transport owns retry backoff and dead-lettering; consumers must tolerate
// redelivery.
type Publisher interface {
	Publish(ctx context.Context, job *models.IngestJob) error
}

// Handler processes one delivered job. A nil return acknowledges the message;
// an error leaves it pending for redelivery.
type Handler func(ctx context.Context, job *models.IngestJob) error

// Consumer pulls jobs from the durable queue and feeds them to a handler,
// one at a time per worker instance.
type Consumer interface {
	Run(ctx context.Context, h Handler) error
	Close() error
}
