package port

import (
	"context"

	"github.com/starcoex/auth-platform/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus. Publishing is
// fire-and-forget from the caller's perspective: failures are logged, never
// surfaced on the primary response path.
type EventPublisher interface {
	PublishPrincipalRegistered(ctx context.Context, event domain.PrincipalRegisteredEvent) error
	PublishVerificationRequested(ctx context.Context, event domain.VerificationRequestedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishLoggedIn(ctx context.Context, event domain.LoggedInEvent) error
}
