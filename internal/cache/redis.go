// Package cache keeps recently assembled windows in Redis so identical
// requests over an unchanged packet batch are served without re-running
// the assembly pipeline.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"sensor-window-service/internal/models"
)

const (
	// WindowKeyPrefix namespaces cached windows.
	WindowKeyPrefix = "window:"
	// DefaultTTL bounds how long an assembled window stays valid.
	DefaultTTL = 10 * time.Minute
)

// CachedWindow bundles the window and its report for round-tripping.
type CachedWindow struct {
	Window *models.DataWindow     `json:"window"`
	Report *models.AssemblyReport `json:"report"`
}

// WindowCache caches assembled windows in Redis.
type WindowCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewWindowCache connects to Redis. The service treats a nil cache as
// "caching disabled", so a failure here is not fatal to the caller.
func NewWindowCache(addr, password string, db int) (*WindowCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &WindowCache{client: client, ctx: ctx}, nil
}

// RequestKey derives the cache key for a request over a given packet batch.
// The batch size and the store's generation counter are both part of the
// key, so adding, replacing or clearing packets invalidates old entries
// even when the batch size ends up the same.
func RequestKey(req *models.WindowRequest, batchSize int, generation uint64) string {
	payload := fmt.Sprintf("%d:%d:%d:%g:%d:%g:%v:%d:%d",
		req.StartUs, req.EndUs, req.PaddingUs,
		req.GapToleranceMultiplier, req.MinTimesyncSamples,
		req.MaxResidualStdDevUs, req.CorrectionEnabled(), batchSize, generation)
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%s%x", WindowKeyPrefix, sum[:16])
}

// CacheWindow stores an assembled window under the request key.
func (c *WindowCache) CacheWindow(key string, window *models.DataWindow, report *models.AssemblyReport) error {
	data, err := json.Marshal(CachedWindow{Window: window, Report: report})
	if err != nil {
		return fmt.Errorf("failed to marshal window: %w", err)
	}
	return c.client.Set(c.ctx, key, data, DefaultTTL).Err()
}

// GetWindow retrieves a cached window; the second return value is false on
// a miss.
func (c *WindowCache) GetWindow(key string) (*CachedWindow, bool, error) {
	data, err := c.client.Get(c.ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached window: %w", err)
	}

	var cached CachedWindow
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached window: %w", err)
	}
	return &cached, true, nil
}

// Ping checks the Redis connection.
func (c *WindowCache) Ping() error {
	return c.client.Ping(c.ctx).Err()
}

// Close closes the connection.
func (c *WindowCache) Close() error {
	return c.client.Close()
}
