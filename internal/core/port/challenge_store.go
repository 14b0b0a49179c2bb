package port

import (
	"context"
	"time"
)

// ChallengeStore tracks OTP attempts per pending two-factor challenge so a
// stolen challenge token cannot be brute-forced within its lifetime. The
// challenge itself is stateless; only the attempt counter is server-side.
type ChallengeStore interface {
	// RecordAttempt increments the attempt counter for the challenge and
	// returns the new total. The counter expires with the supplied TTL.
	RecordAttempt(ctx context.Context, challengeID string, ttl time.Duration) (int, error)
	// ClearAttempts removes the counter after a successful verification.
	ClearAttempts(ctx context.Context, challengeID string) error
}
