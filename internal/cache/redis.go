package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ledger/internal/core"
)

const defaultKeyPrefix = "ledger:report"

// RedisReports shares computed reports between replicas. Values are JSON
// encoded reports under <prefix>:<ReportKey>.
type RedisReports struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

type RedisConfig struct {
	URL       string
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisReports connects to cfg.URL and checks the connection.
func NewRedisReports(ctx context.Context, cfg RedisConfig) (*RedisReports, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return newRedisReports(client, cfg), nil
}

func newRedisReports(client *redis.Client, cfg RedisConfig) *RedisReports {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisReports{client: client, keyPrefix: prefix, ttl: cfg.TTL}
}

func (c *RedisReports) key(k string) string {
	return c.keyPrefix + ":" + k
}

func (c *RedisReports) Get(ctx context.Context, key ReportKey) (core.FinanceReport, bool) {
	var report core.FinanceReport
	data, err := c.client.Get(ctx, c.key(key.String())).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Report cache read failed", "key", key.String(), "error", err)
		}
		return report, false
	}
	if err := json.Unmarshal(data, &report); err != nil {
		slog.WarnContext(ctx, "Discarding undecodable cached report", "key", key.String(), "error", err)
		return core.FinanceReport{}, false
	}
	return report, true
}

func (c *RedisReports) Set(ctx context.Context, key ReportKey, report core.FinanceReport) {
	data, err := json.Marshal(report)
	if err != nil {
		slog.WarnContext(ctx, "Report not cacheable", "key", key.String(), "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key.String()), data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Report cache write failed", "key", key.String(), "error", err)
	}
}

// InvalidateUser deletes every cached report of user.
func (c *RedisReports) InvalidateUser(ctx context.Context, user core.UserID) error {
	pattern := c.key(escapeGlob(userPrefix(user)) + "*")
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached reports: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cached reports: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisReports) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisReports) Close() error {
	return c.client.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
