package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishPrincipalRegistered logs auth.principal.registered events.
func (p *StubPublisher) PublishPrincipalRegistered(_ context.Context, event domain.PrincipalRegisteredEvent) error {
	p.logEvent("auth.principal.registered", event.PrincipalID, event.RegisteredAt, map[string]any{
		"email": logger.MaskEmail(event.Email),
	})
	return nil
}

// PublishVerificationRequested logs auth.verification.requested events.
func (p *StubPublisher) PublishVerificationRequested(_ context.Context, event domain.VerificationRequestedEvent) error {
	p.logEvent("auth.verification.requested", event.PrincipalID, event.RequestedAt, map[string]any{
		"email":   logger.MaskEmail(event.Email),
		"purpose": event.Purpose,
		"code":    logger.MaskString(event.ActivationCode),
	})
	return nil
}

// PublishPasswordResetRequested logs auth.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent("auth.password.reset_requested", event.PrincipalID, event.RequestedAt, map[string]any{
		"email": logger.MaskEmail(event.Email),
	})
	return nil
}

// PublishLoggedIn logs auth.principal.logged_in events.
func (p *StubPublisher) PublishLoggedIn(_ context.Context, event domain.LoggedInEvent) error {
	p.logEvent("auth.principal.logged_in", event.PrincipalID, event.LoggedInAt, map[string]any{
		"email":       logger.MaskEmail(event.Email),
		"remember_me": event.RememberMe,
		"two_factor":  event.TwoFactor,
	})
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
