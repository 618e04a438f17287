package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/draftforme-backend/internal/models"
)

// ErrMiss is returned when a key is not present in Redis.
var ErrMiss = errors.New("cache miss")

type RedisClient struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisClient connects to Redis with retry. retention is how long persisted
// tier snapshots are kept, which should comfortably exceed the in-memory TTL so
// a cold start during an upstream outage still has something to serve.
func NewRedisClient(url string, retention time.Duration) (*RedisClient, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 5
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			log.Printf("✅ Successfully connected to Redis")
			return &RedisClient{client: client, retention: retention}, nil
		}
		log.Printf("⚠️ Redis connection attempt %d failed, retrying...", i+1)
		time.Sleep(2 * time.Second)
	}

	return nil, fmt.Errorf("failed to connect to Redis after 3 attempts")
}

// NewRedisClientFrom wraps an existing client without pinging it.
func NewRedisClientFrom(client *redis.Client, retention time.Duration) *RedisClient {
	return &RedisClient{client: client, retention: retention}
}

// Get retrieves and unmarshals a JSON value.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		log.Printf("❌ Redis error for key '%s': %v", key, err)
		return fmt.Errorf("redis error: %w", err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		log.Printf("❌ Failed to unmarshal cached value for key '%s': %v", key, err)
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

// Set marshals and stores a value as JSON.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := r.client.Set(ctx, key, jsonBytes, expiration).Err(); err != nil {
		log.Printf("❌ Failed to set cache key '%s': %v", key, err)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		log.Printf("❌ Failed to delete cache key '%s': %v", key, err)
		return err
	}
	return nil
}

// LoadSnapshot returns the persisted tier list for key, or ErrMiss.
func (r *RedisClient) LoadSnapshot(ctx context.Context, key models.TierKey) (*models.TierSnapshot, error) {
	var snap models.TierSnapshot
	if err := r.Get(ctx, key.String(), &snap); err != nil {
		return nil, err
	}
	log.Printf("📦 Loaded persisted snapshot %s (%d champions, fetched %s)",
		key, len(snap.Stats), snap.FetchedAt.Format(time.RFC3339))
	return &snap, nil
}

// SaveSnapshot persists a tier list under its key.
func (r *RedisClient) SaveSnapshot(ctx context.Context, snap *models.TierSnapshot) error {
	key := models.TierKey{Region: snap.Region, Tier: snap.Tier, Role: snap.Role}
	return r.Set(ctx, key.String(), snap, r.retention)
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// HealthCheck returns true if Redis is healthy.
func (r *RedisClient) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

// Name identifies the store in logs and health output.
func (r *RedisClient) Name() string { return "redis" }
