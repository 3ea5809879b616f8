package serving

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clinicflow/waittime/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// PredictionCache stores presented predictions keyed by model version and
// record, so a reload naturally invalidates old entries.
type PredictionCache interface {
	Get(ctx context.Context, key string) (models.PredictionResponse, bool, error)
	Set(ctx context.Context, key string, resp models.PredictionResponse) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "prediction"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (models.PredictionResponse, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PredictionResponse{}, false, nil
	}
	if err != nil {
		return models.PredictionResponse{}, false, err
	}
	var resp models.PredictionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.PredictionResponse{}, false, err
	}
	return resp, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, resp models.PredictionResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

// CacheKey renders the encoded columns of a validated record sorted by name,
// prefixed with the model version. Column names are quoted so no label can
// imitate a separator.
func CacheKey(version string, columns map[string]float64) string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(version)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(strconv.Quote(name))
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(columns[name], 'g', -1, 64))
	}
	return b.String()
}
