package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/starcoex/auth-platform/internal/core/port"
)

const defaultChallengePrefix = "auth:2fa-challenge"

// ChallengeAttemptRepository counts OTP attempts per pending two-factor
// challenge in Redis. The counter carries the challenge token's TTL so it
// disappears with the token it guards.
type ChallengeAttemptRepository struct {
	client *red.Client
	prefix string
}

// NewChallengeAttemptRepository constructs a repository with the provided
// Redis client and key prefix.
func NewChallengeAttemptRepository(client *red.Client, keyPrefix string) *ChallengeAttemptRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &ChallengeAttemptRepository{client: client, prefix: prefix}
}

// RecordAttempt increments the attempt counter for the challenge and returns
// the new total.
func (r *ChallengeAttemptRepository) RecordAttempt(ctx context.Context, challengeID string, ttl time.Duration) (int, error) {
	if strings.TrimSpace(challengeID) == "" {
		return 0, fmt.Errorf("challenge id is required")
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("ttl must be positive")
	}

	key := r.key(challengeID)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr attempts: %w", err)
	}

	return int(incr.Val()), nil
}

// ClearAttempts removes the counter.
func (r *ChallengeAttemptRepository) ClearAttempts(ctx context.Context, challengeID string) error {
	if strings.TrimSpace(challengeID) == "" {
		return fmt.Errorf("challenge id is required")
	}

	if err := r.client.Del(ctx, r.key(challengeID)).Err(); err != nil {
		return fmt.Errorf("redis del attempts: %w", err)
	}

	return nil
}

func (r *ChallengeAttemptRepository) key(challengeID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, challengeID)
}

var _ port.ChallengeStore = (*ChallengeAttemptRepository)(nil)
