package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/42cats/crime-cat-sub002/internal/domain/events"
	"github.com/42cats/crime-cat-sub002/pkg/config"
	"github.com/42cats/crime-cat-sub002/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Custom error types
var (
	ErrCacheNotFound   = errors.New("cache: key not found")
	ErrCacheConnection = errors.New("cache: connection error")
	ErrInvalidConfig   = errors.New("cache: invalid configuration")
)

// ScheduleEventChannel is the Redis channel for schedule change events
const ScheduleEventChannel = "schedule:events"

// Config holds the configuration for the Redis client
type Config struct {
	Addr             string
	Password         string
	DB               int
	PoolSize         int
	MinIdleConns     int
	MaxRetries       int
	ConnTimeout      time.Duration
	OperationTimeout time.Duration
	DefaultTTL       time.Duration
	MaxKeyLength     int
	KeyPrefix        string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolSize:         100,
		MinIdleConns:     10,
		MaxRetries:       3,
		ConnTimeout:      5 * time.Second,
		OperationTimeout: 2 * time.Second,
		DefaultTTL:       30 * time.Minute,
		MaxKeyLength:     256,
		KeyPrefix:        "crimecat:",
	}
}

// NewConfigFromEnv creates a Redis config from project configuration
func NewConfigFromEnv(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.Addr = fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	c.Password = cfg.Redis.Password
	c.DB = cfg.Redis.DB
	if cfg.Server.Timeout > 0 {
		c.OperationTimeout = cfg.Server.Timeout
	}
	return c
}

// Metrics tracks cache hit/miss statistics with atomic operations
type Metrics struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// RedisClient wraps the Redis client with additional functionality
type RedisClient struct {
	client    *redis.Client
	metrics   *Metrics
	config    *Config
	log       *logger.Logger
	closeOnce sync.Once
	health    int32 // 0 = healthy, 1 = unhealthy, accessed atomically
}

// NewRedisClient creates a new Redis client with the provided configuration
func NewRedisClient(cfg *Config, log *logger.Logger) (*RedisClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}
	if log == nil {
		log = logger.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnTimeout)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisClient{
		client:  client,
		config:  cfg,
		metrics: &Metrics{},
		log:     log,
	}

	go r.healthCheckLoop()

	return r, nil
}

// healthCheckLoop periodically checks Redis health
func (r *RedisClient) healthCheckLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.OperationTimeout)
		if err := r.client.Ping(ctx).Err(); err != nil {
			atomic.StoreInt32(&r.health, 1)
			r.log.Error("Redis health check failed", zap.Error(err))
		} else {
			atomic.StoreInt32(&r.health, 0)
		}
		cancel()
	}
}

// IsHealthy returns whether Redis is currently healthy
func (r *RedisClient) IsHealthy() bool {
	return atomic.LoadInt32(&r.health) == 0
}

// withContext wraps the context with a timeout if none is set
func (r *RedisClient) withContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, r.config.OperationTimeout)
	}
	return ctx, func() {}
}

// validateKey checks if the key is valid
func (r *RedisClient) validateKey(key string) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidConfig)
	}
	if len(key) > r.config.MaxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidConfig, r.config.MaxKeyLength)
	}
	return nil
}

// prefixKey adds the configured prefix to the key
func (r *RedisClient) prefixKey(key string) string {
	return r.config.KeyPrefix + key
}

// Get retrieves a value from the cache
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	if err := r.validateKey(key); err != nil {
		return "", err
	}
	if !r.IsHealthy() {
		return "", ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefixKey(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("%w: %s", ErrCacheNotFound, key)
		}
		return "", fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return val, nil
}

// Set stores a value in the cache. A single SET is atomic in Redis, so
// readers either see the previous value or the full replacement.
func (r *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.validateKey(key); err != nil {
		return err
	}
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	if ttl <= 0 {
		ttl = r.config.DefaultTTL
	}
	return r.client.Set(ctx, r.prefixKey(key), value, ttl).Err()
}

// Delete removes values from the cache
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		if err := r.validateKey(key); err != nil {
			return err
		}
		prefixedKeys[i] = r.prefixKey(key)
	}

	return r.client.Del(ctx, prefixedKeys...).Err()
}

// ClearByPattern removes all cache entries matching the given pattern.
// Patterns are expected to be entity-scoped (one user, one event); callers
// must never pass a global wildcard.
func (r *RedisClient) ClearByPattern(ctx context.Context, pattern string) error {
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.prefixKey(pattern), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

// GetJSON retrieves a value and unmarshals it into out.
func (r *RedisClient) GetJSON(ctx context.Context, key string, out interface{}) error {
	val, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), out)
}

// SetJSON marshals v and stores it under key.
func (r *RedisClient) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Set(ctx, key, string(data), ttl)
}

// trackCacheEvent tracks cache hits/misses
func (r *RedisClient) trackCacheEvent(hit bool) {
	if hit {
		r.metrics.hits.Add(1)
	} else {
		r.metrics.misses.Add(1)
	}
}

// CacheJSON is a read-through helper: on hit it unmarshals into out, on
// miss it calls fn, stores the result under key and unmarshals it into out.
func (r *RedisClient) CacheJSON(ctx context.Context, key string, ttl time.Duration, out interface{}, fn func() (interface{}, error)) error {
	if err := r.GetJSON(ctx, key, out); err == nil {
		r.trackCacheEvent(true)
		return nil
	}
	r.trackCacheEvent(false)

	result, err := fn()
	if err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := r.Set(ctx, key, string(data), ttl); err != nil {
		r.log.Error("Error caching result", zap.String("key", key), zap.Error(err))
	}
	return json.Unmarshal(data, out)
}

// Cache key helpers. Invalidation is scoped by construction: availability
// keys carry the user id, recommendation keys the event id, busy-set keys
// the subscription id.

// AvailabilityKey builds the cache key for a user's free intervals in a range.
func AvailabilityKey(userID uuid.UUID, start, end time.Time) string {
	return fmt.Sprintf("avail:%s:%d:%d", userID, start.Unix(), end.Unix())
}

// RecommendationKey builds the cache key for an event's recommendation set.
func RecommendationKey(eventID uuid.UUID) string {
	return fmt.Sprintf("recs:%s", eventID)
}

// BusyIntervalKey builds the cache key for a subscription's synced busy set.
func BusyIntervalKey(subscriptionID uuid.UUID) string {
	return fmt.Sprintf("busy:%s", subscriptionID)
}

// InvalidateUserAvailability removes every cached availability range for one
// user. Other users' entries are untouched.
func (r *RedisClient) InvalidateUserAvailability(ctx context.Context, userID uuid.UUID) error {
	return r.ClearByPattern(ctx, fmt.Sprintf("avail:%s:*", userID))
}

// InvalidateEventRecommendations removes the cached recommendation set for
// one event.
func (r *RedisClient) InvalidateEventRecommendations(ctx context.Context, eventID uuid.UUID) error {
	return r.Delete(ctx, RecommendationKey(eventID))
}

// PublishScheduleEvent publishes a schedule change event for external
// subscribers (the bot bridge mirrors invalidations from this channel).
func (r *RedisClient) PublishScheduleEvent(ctx context.Context, event *events.ScheduleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ScheduleEventChannel, data).Err()
}

// SubscribeToScheduleEvents subscribes to schedule events until ctx is done.
func (r *RedisClient) SubscribeToScheduleEvents(ctx context.Context, callback func(*events.ScheduleEvent) error) error {
	pubsub := r.client.Subscribe(ctx, ScheduleEventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			var event events.ScheduleEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				return err
			}
			if err := callback(&event); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ExportMetrics returns cache and pool counters for the metrics endpoint.
func (r *RedisClient) ExportMetrics() map[string]float64 {
	stats := r.client.PoolStats()
	return map[string]float64{
		"cache_hits":       float64(r.metrics.hits.Load()),
		"cache_misses":     float64(r.metrics.misses.Load()),
		"pool_total_conns": float64(stats.TotalConns),
		"pool_idle_conns":  float64(stats.IdleConns),
		"pool_stale_conns": float64(stats.StaleConns),
	}
}

// HealthCheck checks if Redis is responding
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close properly closes the Redis client
func (r *RedisClient) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.client.Close()
	})
	return err
}
