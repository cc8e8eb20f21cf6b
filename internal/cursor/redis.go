package cursor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// healthCheckKey is read by Ping; it never needs to exist.
const healthCheckKey = "health_check"

var (
	// compare-and-delete: only the owner may release
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	// compare-and-advance: write only when strictly greater than the stored value
	advanceScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1`)
)

type redisBackend struct {
	client  redis.UniversalClient
	key     string
	lockKey string
}

// NewRedisBackend returns a Backend storing the cursor as a decimal string under key
// and the lease owner token under lockKey with a Redis-side expiry.
func NewRedisBackend(client redis.UniversalClient, key, lockKey string) Backend {
	return &redisBackend{
		client:  client,
		key:     key,
		lockKey: lockKey,
	}
}

func (r *redisBackend) Load(ctx context.Context) (uint64, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cursor value %q is not an epoch: %w", raw, err)
	}
	return value, true, nil
}

func (r *redisBackend) Save(ctx context.Context, value uint64, mode WriteMode) (bool, error) {
	encoded := strconv.FormatUint(value, 10)
	if mode == IfGreater {
		n, err := advanceScript.Run(ctx, r.client, []string{r.key}, encoded).Int()
		if err != nil {
			return false, err
		}
		return n == 1, nil
	}
	if err := r.client.Set(ctx, r.key, encoded, 0).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// TryAcquire uses SET NX with the lease TTL, so expiry is enforced by Redis.
func (r *redisBackend) TryAcquire(ctx context.Context, lease Lease) (bool, error) {
	res, err := r.client.SetArgs(ctx, r.lockKey, lease.OwnerToken, redis.SetArgs{
		Mode: "NX",
		TTL:  lease.TTL,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return res == "OK", nil
}

func (r *redisBackend) Release(ctx context.Context, ownerToken string) (bool, error) {
	n, err := releaseScript.Run(ctx, r.client, []string{r.lockKey}, ownerToken).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *redisBackend) ActiveLease(ctx context.Context) (*Lease, error) {
	token, err := r.client.Get(ctx, r.lockKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	ttl, err := r.client.PTTL(ctx, r.lockKey).Result()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		// expired between the two calls, or no expiry set
		ttl = 0
	}
	// Redis only keeps the remaining TTL, so the lease is anchored at now.
	return &Lease{
		OwnerToken: token,
		AcquiredAt: time.Now(),
		TTL:        ttl,
	}, nil
}

func (r *redisBackend) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key, r.lockKey).Err()
}

func (r *redisBackend) Ping(ctx context.Context) error {
	err := r.client.Get(ctx, healthCheckKey).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}
