package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/core/ingestion_engine"
	"github.com/kbforge/kbforge/internal/models"
)

const jobField = "job"

// RedisQueue realizes the durable job queue as a Redis stream with a consumer
// group. Messages are acknowledged only after the handler succeeds; failed and
// abandoned deliveries stay pending and are reclaimed, which gives the
// at-least-once contract the orchestrator's idempotency guard exists for.
type RedisQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	minIdle  time.Duration
	logger   *zap.Logger
}

var (
	_ Publisher = (*RedisQueue)(nil)
	_ Consumer  = (*RedisQueue)(nil)
)

func NewRedisQueue(client *redis.Client, stream, group, consumer string, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		minIdle:  time.Minute,
		logger:   logger,
	}
}

func (q *RedisQueue) Publish(ctx context.Context, job *models.IngestJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal ingest job: %w", err)
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{jobField: raw},
	}).Err(); err != nil {
		return fmt.Errorf("enqueue ingest job: %w", err)
	}
	return nil
}

// Run consumes jobs until the context is cancelled. Per-instance concurrency
// is one: a single job is read, handled and acknowledged before the next read.
func (q *RedisQueue) Run(ctx context.Context, h Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Reclaim messages whose worker died mid-job (visibility timeout).
		q.reclaim(ctx, h)

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.Warn("queue read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				q.handleMessage(ctx, h, msg)
			}
		}
	}
}

func (q *RedisQueue) handleMessage(ctx context.Context, h Handler, msg redis.XMessage) {
	log := q.logger.With(zap.String("message_id", msg.ID))

	raw, ok := msg.Values[jobField].(string)
	if !ok {
		log.Error("malformed queue message, acknowledging to drop")
		q.ack(ctx, msg.ID)
		return
	}

	var job models.IngestJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error("undecodable ingest job, acknowledging to drop", zap.Error(err))
		q.ack(ctx, msg.ID)
		return
	}

	if err := h(ctx, &job); err != nil {
		if !retryable(err) {
			log.Error("invalid job, acknowledging to drop",
				zap.String("kb_id", job.KBID), zap.Error(err))
			q.ack(ctx, msg.ID)
			return
		}
		// No ack: the message stays pending and will be redelivered.
		log.Error("job failed, leaving for redelivery",
			zap.String("kb_id", job.KBID), zap.Error(err))
		return
	}
	q.ack(ctx, msg.ID)
}

// retryable reports whether redelivery could change the outcome. A job that is
// invalid as published stays invalid on every delivery, so redelivering it
// would only poison the stream.
func retryable(err error) bool {
	return !errors.Is(err, ingestion_engine.ErrJobConfig)
}

// reclaim takes over messages left pending longer than minIdle by a consumer
// that never acknowledged them.
func (q *RedisQueue) reclaim(ctx context.Context, h Handler) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.minIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil || len(msgs) == 0 {
		return
	}
	for _, msg := range msgs {
		q.handleMessage(ctx, h, msg)
	}
}

func (q *RedisQueue) ack(ctx context.Context, id string) {
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		q.logger.Warn("ack failed", zap.String("message_id", id), zap.Error(err))
	}
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
