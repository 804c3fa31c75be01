package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const (
	defaultKeyPrefix     = "mirrorsync:lock:"
	defaultRetryInterval = 250 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig configures a RedisService.
type RedisConfig struct {
	// URL is a redis://<user>:<password>@<host>:<port>/<db> connection string
	URL string
	// TTL bounds how long a crashed holder can keep a lock
	TTL time.Duration
	// RetryInterval is the polling interval while waiting for a lock
	RetryInterval time.Duration
	// Prefix is prepended to every key. Defaults to "mirrorsync:lock:".
	Prefix string
}

// RedisService is a Service backed by Redis SET NX locks with expiry.
type RedisService struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string

	mu     sync.Mutex
	closed bool
}

// NewRedisService connects to the server at cfg.URL.
func NewRedisService(ctx context.Context, cfg RedisConfig) (*RedisService, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisServiceWithClient(client, cfg)
}

// NewRedisServiceWithClient creates a RedisService using client, which it
// owns from then on. cfg.URL is ignored.
func NewRedisServiceWithClient(client *redis.Client, cfg RedisConfig) (*RedisService, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", cfg.TTL)
	}
	s := &RedisService{
		client: client,
		ttl:    cfg.TTL,
		retry:  cfg.RetryInterval,
		prefix: cfg.Prefix,
	}
	if s.retry <= 0 {
		s.retry = defaultRetryInterval
	}
	if s.prefix == "" {
		s.prefix = defaultKeyPrefix
	}
	return s, nil
}

// Acquire polls until key is set or ctx is done.
func (s *RedisService) Acquire(ctx context.Context, key string) (Releaser, error) {
	if s.isClosed() {
		return nil, ErrAlreadyClosed
	}

	redisKey := s.prefix + key
	token := uuid.NewString()
	ticker := time.NewTicker(s.retry)
	defer ticker.Stop()

	for {
		ok, err := s.client.SetNX(ctx, redisKey, token, s.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, displayKey(key), ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock %s: %w", displayKey(key), err)
		}
		if ok {
			return &redisReleaser{service: s, key: redisKey, token: token}, nil
		}

		klog.V(4).InfoS("Waiting for lock", "key", displayKey(key))
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrTimeout, displayKey(key), ctx.Err())
		}
	}
}

// Close closes the Redis client.
func (s *RedisService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrAlreadyClosed
	}
	s.closed = true
	return s.client.Close()
}

func (s *RedisService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type redisReleaser struct {
	service *RedisService
	key     string
	token   string
}

// Release deletes the key if it still carries this holder's token. A lock
// that expired and was taken by someone else is left alone.
func (r *redisReleaser) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.service.client, []string{r.key}, r.token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, displayKey(strings.TrimPrefix(r.key, r.service.prefix)))
	}
	return nil
}
