package service

import (
	"context"
	"encoding/json"

	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/config"
	"github.com/SSAFY12-B107/OmyPIc-sub000/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StatusPublisher broadcasts grading status transitions so clients can
// follow progress without polling. Publishing is best-effort: a failed
// publish never fails the pipeline.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event model.StatusEvent)
}

// RedisStatusPublisher publishes events on the per-test Redis channel.
type RedisStatusPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisStatusPublisher creates a new RedisStatusPublisher.
func NewRedisStatusPublisher(rdb *redis.Client, log zerolog.Logger) *RedisStatusPublisher {
	return &RedisStatusPublisher{
		rdb: rdb,
		log: log.With().Str("component", "status_publisher").Logger(),
	}
}

// PublishStatus sends the event to the test's status channel.
func (p *RedisStatusPublisher) PublishStatus(ctx context.Context, event model.StatusEvent) {
	raw, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Msg("Marshal status event")
		return
	}
	if err := p.rdb.Publish(ctx, config.CacheKey.TestStatusChannel(event.TestID), raw).Err(); err != nil {
		p.log.Warn().Err(err).Str("test_id", event.TestID).Msg("Publish status event failed")
	}
}
