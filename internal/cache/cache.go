// Package cache memoizes extraction results in Redis, keyed by content,
// strategy and effective options.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joseph-ayodele/content-extractor/constants"
	"github.com/joseph-ayodele/content-extractor/internal/common"
	"github.com/joseph-ayodele/content-extractor/internal/extract"
)

const keyPrefix = "extract:v1:"

// options that only change how a job runs, not what it produces
var volatileOptions = []string{"timeout_secs", "extended_timeout", "cache"}

// Cache is a Redis-backed result cache. A nil *Cache is a disabled cache:
// every Get misses and every Put is dropped.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New connects to cfg.RedisAddr and pings it. An empty address returns a
// nil (disabled) cache.
func New(ctx context.Context, cfg common.CacheConfig, logger *slog.Logger) (*Cache, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	pctx, cancel := context.WithTimeout(ctx, constants.HealthProbeTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return NewWithClient(client, cfg.TTL, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = constants.ResultCacheTTL
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Key derives the cache key from the content digest, the strategy and the
// digest of the effective options.
func Key(data []byte, s constants.Strategy, opts extract.Options) string {
	sum := sha256.Sum256(data)
	return keyPrefix + hex.EncodeToString(sum[:]) + ":" + string(s) + ":" + optionsDigest(opts)
}

func optionsDigest(opts extract.Options) string {
	clean := make(map[string]any, len(opts))
	for k, v := range opts {
		clean[k] = v
	}
	for _, k := range volatileOptions {
		delete(clean, k)
	}
	// encoding/json sorts map keys, so equal documents hash equally
	b, err := json.Marshal(clean)
	if err != nil {
		b = []byte(fmt.Sprint(clean))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// Get returns the cached result for key. Misses and Redis errors both
// report false; errors are logged.
func (c *Cache) Get(ctx context.Context, key string) (*extract.Result, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache.miss", "key", key)
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache.get.failed", "key", key, "error", err)
		return nil, false
	}
	var res extract.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.Warn("cache.decode.failed", "key", key, "error", err)
		return nil, false
	}
	normalizeMetadata(res.Metadata)
	c.logger.Debug("cache.hit", "key", key)
	return &res, true
}

// normalizeMetadata restores string lists ("warnings", "modalities",
// "imports" and the like) that JSON decoding turned into []any.
func normalizeMetadata(md map[string]any) {
	for k, v := range md {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		strs := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				break
			}
			strs = append(strs, s)
		}
		if len(strs) == len(list) {
			md[k] = strs
		}
	}
}

// Degraded reports whether res reflects a transient condition rather than
// the content: a fallback ran, a backend was unavailable, a modality or
// frame was dropped, or automatic OCR failed. Such results are not cached.
func Degraded(res *extract.Result) bool {
	if res == nil {
		return false
	}
	for k, v := range res.Metadata {
		switch {
		case k == "fallback_from":
			return true
		case k == "degraded":
			if d, _ := v.(string); d != "" && d != "none" {
				return true
			}
		case k == "frames_skipped":
			if n, _ := v.(int); n > 0 {
				return true
			}
		case k == "ocr_escalation_failed", strings.HasSuffix(k, "_unavailable"):
			if b, _ := v.(bool); b {
				return true
			}
		}
	}
	return false
}

// Put stores res under key with the configured TTL. Failures are logged.
func (c *Cache) Put(ctx context.Context, key string, res *extract.Result) {
	if c == nil || res == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("cache.encode.failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache.put.failed", "key", key, "error", err)
	}
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
