package port

import (
	"context"

	"github.com/starcoex/auth-platform/internal/core/domain"
)

// ActivationStore persists the 1:1 activation record for a principal.
// Mutations are single-statement upserts keyed by principal id so that
// concurrent toggles cannot interleave a read-modify-write.
type ActivationStore interface {
	Get(ctx context.Context, principalID string) (*domain.ActivationRecord, error)
	// SetActivationArtifacts stores a fresh code/token pair, replacing any
	// previous one, and optionally records a requested email for change flows.
	SetActivationArtifacts(ctx context.Context, principalID, code, token string, requestedEmail *string) error
	// ConsumeActivation blanks code, token, and requested email atomically.
	ConsumeActivation(ctx context.Context, principalID string) error
	// SetTwoFactor writes secret and enabled together. Enabling requires a
	// non-nil secret; disabling clears both, never leaving a stale secret.
	SetTwoFactor(ctx context.Context, principalID string, secret *string, enabled bool) error
}
