package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix = "gatehouse:rev:"
	liveKeyPrefix    = "gatehouse:live:"
	sessionKeyPrefix = "gatehouse:sess:"
	subjectKeyPrefix = "gatehouse:subj:"
)

// RedisRegistry is a Registry backed by Redis so revocations are shared
// across processes. All keys carry a TTL bound to token expiry; Redis
// eviction replaces Sweep.
type RedisRegistry struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client, now: time.Now}
}

func (r *RedisRegistry) Track(ctx context.Context, jti, subjectID, sessionID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, liveKeyPrefix+jti, sessionID, ttl)
	pipe.SAdd(ctx, sessionKeyPrefix+sessionID, jti)
	pipe.ExpireGT(ctx, sessionKeyPrefix+sessionID, ttl)
	pipe.SAdd(ctx, subjectKeyPrefix+subjectID, jti)
	pipe.ExpireGT(ctx, subjectKeyPrefix+subjectID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revocation: track %s: %w", jti, err)
	}
	return nil
}

func (r *RedisRegistry) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation: revoke %s: %w", jti, err)
	}
	return nil
}

func (r *RedisRegistry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("revocation: lookup %s: %w", jti, err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) RevokeSession(ctx context.Context, sessionID string) error {
	return r.revokeIndexed(ctx, sessionKeyPrefix+sessionID)
}

func (r *RedisRegistry) RevokeSubject(ctx context.Context, subjectID string) error {
	return r.revokeIndexed(ctx, subjectKeyPrefix+subjectID)
}

// revokeIndexed blacklists every JTI in the index set whose live key still
// has time left, then drops the index.
func (r *RedisRegistry) revokeIndexed(ctx context.Context, indexKey string) error {
	jtis, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("revocation: read index %s: %w", indexKey, err)
	}

	for _, jti := range jtis {
		ttl, err := r.client.TTL(ctx, liveKeyPrefix+jti).Result()
		if err != nil {
			return fmt.Errorf("revocation: ttl %s: %w", jti, err)
		}
		if ttl <= 0 {
			continue // already expired or never tracked
		}
		if err := r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
			return fmt.Errorf("revocation: revoke %s: %w", jti, err)
		}
	}

	if err := r.client.Del(ctx, indexKey).Err(); err != nil {
		return fmt.Errorf("revocation: drop index %s: %w", indexKey, err)
	}
	return nil
}

// Sweep is a no-op: every key is written with a TTL and Redis expires it.
func (r *RedisRegistry) Sweep(ctx context.Context) error { return nil }

func (r *RedisRegistry) Close() error { return r.client.Close() }
