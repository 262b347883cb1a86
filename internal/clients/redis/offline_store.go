package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rivergarden/training-portal/internal/data/repos/offline"
	"github.com/rivergarden/training-portal/internal/platform/logger"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key this store writes.
	Prefix string
}

// offlineStore keeps one hash per user namespace: <prefix>:offline:<namespace>.
type offlineStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewOfflineStore(log *logger.Logger, opts Options) (offline.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = "training-portal"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &offlineStore{
		log:    log.With("service", "RedisOfflineStore"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (s *offlineStore) Bucket(namespace string) offline.Bucket {
	ns := strings.TrimSpace(namespace)
	if ns == "" {
		ns = "anonymous"
	}
	return &redisBucket{rdb: s.rdb, hash: s.prefix + ":offline:" + ns}
}

func (s *offlineStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// deleteIfValueScript compares and deletes one hash field atomically.
var deleteIfValueScript = goredis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

type redisBucket struct {
	rdb  *goredis.Client
	hash string
}

func (b *redisBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.rdb.HGet(ctx, b.hash, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (b *redisBucket) Set(ctx context.Context, key string, value []byte) error {
	return b.rdb.HSet(ctx, b.hash, key, value).Err()
}

func (b *redisBucket) Delete(ctx context.Context, key string) error {
	return b.rdb.HDel(ctx, b.hash, key).Err()
}

func (b *redisBucket) DeleteIfValue(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := deleteIfValueScript.Run(ctx, b.rdb, []string{b.hash}, key, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *redisBucket) List(ctx context.Context, prefix string) ([]offline.Entry, error) {
	all, err := b.rdb.HGetAll(ctx, b.hash).Result()
	if err != nil {
		return nil, err
	}
	out := make([]offline.Entry, 0, len(all))
	for k, v := range all {
		if strings.HasPrefix(k, prefix) {
			out = append(out, offline.Entry{Key: k, Value: []byte(v)})
		}
	}
	offline.SortEntries(out)
	return out, nil
}
