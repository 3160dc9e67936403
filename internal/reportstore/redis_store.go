package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"escrowtrace/pkg/models"
)

// Config controls the Redis report index.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps the latest report per trace plus a recency index, so
// operators can pull the most recently analyzed sessions without
// re-running analysis.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "escrowtrace:report:"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, prefix: cfg.KeyPrefix}, nil
}

func (s *RedisStore) reportKey(traceID string) string {
	return s.prefix + traceID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "recent"
}

// SaveBatch stores the given reports and refreshes the recency index in
// one pipelined round trip.
func (s *RedisStore) SaveBatch(ctx context.Context, reports []*models.SessionReport) error {
	if len(reports) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, report := range reports {
		payload, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal report %s: %w", report.TraceID, err)
		}
		pipe.Set(ctx, s.reportKey(report.TraceID), payload, 0)
		pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
			Score:  float64(report.GeneratedAt.UnixMilli()),
			Member: report.TraceID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save report batch: %w", err)
	}
	return nil
}

// Fetch returns the stored report for a trace, or nil if none exists.
func (s *RedisStore) Fetch(ctx context.Context, traceID string) (*models.SessionReport, error) {
	data, err := s.client.Get(ctx, s.reportKey(traceID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get report %s: %w", traceID, err)
	}

	var report models.SessionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report %s: %w", traceID, err)
	}
	return &report, nil
}

// RecentTraceIDs returns up to limit trace ids analyzed since the given
// time, most recent first.
func (s *RedisStore) RecentTraceIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	ids, err := s.client.ZRevRangeByScore(ctx, s.indexKey(), &goredis.ZRangeBy{
		Min:   fmt.Sprintf("%d", since.UnixMilli()),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch recent trace ids: %w", err)
	}
	return ids, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
