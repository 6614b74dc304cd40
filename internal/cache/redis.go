package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "events:list:gen"

// Redis caches listing payloads in a shared Redis instance. Invalidation
// bumps a generation counter instead of scanning for keys, so Clear stays
// O(1) across processes.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) generation(ctx context.Context) string {
	gen, err := r.rdb.Get(ctx, generationKey).Int64()

	if err != nil {
		return "0"
	}

	return strconv.FormatInt(gen, 10)
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.rdb.Get(ctx, r.generation(ctx)+":"+key).Bytes()

	if err != nil {
		return nil, false
	}

	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) {
	_ = r.rdb.Set(ctx, r.generation(ctx)+":"+key, val, r.ttl).Err()
}

func (r *Redis) Clear(ctx context.Context) {
	_ = r.rdb.Incr(ctx, generationKey).Err()
}
