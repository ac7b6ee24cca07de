package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"meteostations.app/config"
	"meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
)

const redisKeyPrefix = "httpcache:"

// RedisStore keeps cache entries in Redis, sharing them across processes
type RedisStore struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisStore(cfg *config.RedisConfig, log *logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.NewConfigurationError("redis cache connection failed", err)
	}
	log.Info("redis cache connected", "addr", cfg.Addr)

	return &RedisStore{client: client, log: log}, nil
}

func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	val, err := s.client.Get(ctx, redisKeyPrefix+fingerprint).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Error("redis get error", "error", err, "fingerprint", fingerprint)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		s.log.Error("redis unmarshal error", "error", err, "fingerprint", fingerprint)
		return nil, false
	}
	if entry.expired(time.Now()) {
		return nil, false
	}
	return &entry, true
}

func (s *RedisStore) Set(ctx context.Context, entry *Entry) {
	if entry == nil {
		return
	}
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.log.Error("redis marshal error", "error", err, "fingerprint", entry.Fingerprint)
		return
	}
	if err := s.client.Set(ctx, redisKeyPrefix+entry.Fingerprint, data, ttl).Err(); err != nil {
		s.log.Error("redis set error", "error", err, "fingerprint", entry.Fingerprint)
	}
}

func (s *RedisStore) Delete(ctx context.Context, fingerprint string) {
	if err := s.client.Del(ctx, redisKeyPrefix+fingerprint).Err(); err != nil {
		s.log.Error("redis delete error", "error", err, "fingerprint", fingerprint)
	}
}

// Close releases the underlying Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
