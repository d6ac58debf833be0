package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// RedisPublisher pushes each scan result onto a pub/sub channel and keeps
// the latest result under a key with a TTL, so consumers can read current
// opportunities without hitting the venue.
type RedisPublisher struct {
	client    *redis.Client
	channel   string
	latestKey string
	ttl       time.Duration
	log       *logger.Log
}

func NewRedisPublisher(cfg *appconfig.Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Notify.Redis.Addr,
		Password: cfg.Notify.Redis.Password,
		DB:       cfg.Notify.Redis.DB,
	})

	log := logger.GetLogger()
	log.WithComponent("redis_publisher").WithFields(logger.Fields{
		"addr":    cfg.Notify.Redis.Addr,
		"channel": cfg.Notify.Redis.Channel,
	}).Info("redis publisher initialized")

	return &RedisPublisher{
		client:    client,
		channel:   cfg.Notify.Redis.Channel,
		latestKey: cfg.Notify.Redis.LatestKey,
		ttl:       cfg.Notify.Redis.TTL.Std(),
		log:       log,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, result models.ScanResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}

	if p.latestKey != "" {
		if err := p.client.Set(ctx, p.latestKey, payload, p.ttl).Err(); err != nil {
			return fmt.Errorf("set latest result: %w", err)
		}
	}

	logger.IncrementResultPublished()
	p.log.WithComponent("redis_publisher").WithFields(logger.Fields{
		"scan_id": result.ScanID,
		"count":   result.Count,
	}).Debug("scan result published")

	return nil
}

// Close releases the underlying redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
