package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/core"
)

// RedisProgress publishes pages-processed percentages on a pub/sub channel
// for external progress UIs, and keeps the last value per knowledge base for
// the worker's own status endpoint. Publishing is best effort: a dropped
// update never fails a job.
type RedisProgress struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu   sync.RWMutex
	last map[string]int
}

var _ core.ProgressReporter = (*RedisProgress)(nil)

func NewRedisProgress(client *redis.Client, channel string, logger *zap.Logger) *RedisProgress {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisProgress{
		client:  client,
		channel: channel,
		logger:  logger,
		last:    make(map[string]int),
	}
}

type progressEvent struct {
	KBID    string `json:"kbId"`
	Percent int    `json:"percent"`
}

func (p *RedisProgress) Report(ctx context.Context, kbID string, percent int) {
	p.mu.Lock()
	p.last[kbID] = percent
	p.mu.Unlock()

	raw, err := json.Marshal(progressEvent{KBID: kbID, Percent: percent})
	if err != nil {
		return
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		p.logger.Warn("progress publish failed", zap.String("kb_id", kbID), zap.Error(err))
	}
}

// Latest returns the last reported percentage for a knowledge base and
// whether one has been reported since the worker started.
func (p *RedisProgress) Latest(kbID string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.last[kbID]
	return v, ok
}
