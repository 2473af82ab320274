package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisOptions configures the Redis cache.
type RedisOptions struct {
	Address  string `json:"address" yaml:"address" validate:"required"`
	Password string `json:"-" yaml:"password"`
	DB       int    `json:"db" yaml:"db" validate:"gte=0"`
	// DialTimeout also bounds the startup ping.
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	client *redis.Client
	log    logrus.FieldLogger
}

var _ Cache = (*Redis)(nil)

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions, log logrus.FieldLogger) (*Redis, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Address,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %s", opts.Address)
	}

	log = log.WithField("redis", opts.Address)
	log.Info("connected to redis")
	return &Redis{client: client, log: log}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, log logrus.FieldLogger) *Redis {
	return &Redis{client: client, log: log}
}

// Get returns ErrMiss when the key does not exist.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		r.log.WithError(err).WithField("key", key).Error("error getting cached result")
		return nil, errors.Wrap(err, "redis get")
	}
	return val, nil
}

// Set stores value with the given expiration; zero means no expiration.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.WithError(err).WithField("key", key).Error("error caching result")
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Close closes the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
