package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/infra/config"
	applogger "github.com/starcoex/auth-platform/internal/infra/logger"
	"github.com/starcoex/auth-platform/internal/infra/security"
	"github.com/starcoex/auth-platform/internal/repository"
)

const (
	msgInvalidResetToken    = "invalid or expired reset token"
	msgResetFailed          = "password reset failed"
	msgResetRequested       = "if the account exists, a reset link has been sent"
	msgWrongCurrentPassword = "current password is incorrect"
	msgChangeFailed         = "password change failed"
)

// PasswordResetService implements forgotten-password recovery. Reset tokens
// follow the same single-use, latest-wins artifact scheme as activation
// codes; a successful reset also clears the rotation state so existing
// sessions cannot outlive the compromised password.
type PasswordResetService struct {
	cfg         *config.AppConfig
	users       port.UserStore
	activations port.ActivationStore
	signer      *security.TokenSigner
	policy      *security.PasswordValidator
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService instance.
func NewPasswordResetService(
	cfg *config.AppConfig,
	users port.UserStore,
	activations port.ActivationStore,
	signer *security.TokenSigner,
	policy *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) (*PasswordResetService, error) {
	if cfg == nil || users == nil || activations == nil || signer == nil {
		return nil, errors.New("password reset service: missing dependency")
	}
	if policy == nil {
		policy = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PasswordResetService{
		cfg:         cfg,
		users:       users,
		activations: activations,
		signer:      signer,
		policy:      policy,
		events:      events,
		logger:      log,
		now:         time.Now,
	}, nil
}

// RequestReset issues a reset token for the account behind the email. The
// response is identical whether or not the account exists.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) MessageResult {
	email = strings.TrimSpace(strings.ToLower(email))

	principal, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Ok(MessagePayload{Message: msgResetRequested})
		}
		s.logger.Error("request reset: lookup principal", zap.Error(err), zap.String("email", applogger.MaskEmail(email)))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	code, err := security.GenerateNumericCode(activationCodeLength)
	if err != nil {
		s.logger.Error("request reset: generate code", zap.Error(err))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	token, expiry, err := s.signer.Issue(security.PurposeActivation, security.IssueOptions{
		UserID: principal.ID,
		TTL:    s.cfg.JWT.ActivationTTL,
		Code:   code,
	})
	if err != nil {
		s.logger.Error("request reset: issue token", zap.Error(err))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	tokenHash := security.HashToken(token)
	if err := s.activations.SetActivationArtifacts(ctx, principal.ID, code, tokenHash, nil); err != nil {
		s.logger.Error("request reset: store artifacts", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	s.publishResetRequested(ctx, principal.ID, principal.Email, token, expiry)

	return domain.Ok(MessagePayload{Message: msgResetRequested})
}

// ResetPassword replaces the credential once the presented token matches the
// latest issued artifact and the new password passes policy. Rotation state
// is cleared in the same flow, so refresh tokens minted under the old
// password stop working.
func (s *PasswordResetService) ResetPassword(ctx context.Context, resetToken, newPassword string) MessageResult {
	claims, err := s.signer.Verify(resetToken, security.PurposeActivation)
	if err != nil {
		return domain.Fail[MessagePayload](msgInvalidResetToken)
	}

	principal, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[MessagePayload](msgInvalidResetToken)
		}
		s.logger.Error("reset password: lookup principal", zap.Error(err))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	record, err := s.activations.Get(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[MessagePayload](msgInvalidResetToken)
		}
		s.logger.Error("reset password: load artifacts", zap.Error(err))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	if record.ActivationToken == nil || !security.VerifyTokenHash(resetToken, *record.ActivationToken) {
		return domain.Fail[MessagePayload](msgInvalidResetToken)
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return domain.Fail[MessagePayload](err.Error())
	}
	if same, err := security.VerifyPassword(newPassword, principal.PasswordHash); err == nil && same {
		return domain.Fail[MessagePayload]("new password must be different from current password")
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("reset password: hash password", zap.Error(err))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	if err := s.users.UpdatePassword(ctx, principal.ID, passwordHash, s.now().UTC()); err != nil {
		s.logger.Error("reset password: update password", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[MessagePayload](msgResetFailed)
	}

	if err := s.activations.ConsumeActivation(ctx, principal.ID); err != nil {
		s.logger.Warn("reset password: consume artifacts", zap.Error(err), zap.String("principal_id", principal.ID))
	}
	if err := s.users.UpdateRotationState(ctx, principal.ID, domain.RotationState{}); err != nil {
		s.logger.Warn("reset password: clear rotation state", zap.Error(err), zap.String("principal_id", principal.ID))
	}

	return domain.Ok(MessagePayload{Message: "password updated"})
}

// ChangePassword replaces the credential for an authenticated principal. The
// current password must verify first; rotation state is cleared on success so
// sessions established under the old password stop refreshing.
func (s *PasswordResetService) ChangePassword(ctx context.Context, principalID, currentPassword, newPassword string) MessageResult {
	principal, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[MessagePayload](msgWrongCurrentPassword)
		}
		s.logger.Error("change password: lookup principal", zap.Error(err), zap.String("principal_id", principalID))
		return domain.Fail[MessagePayload](msgChangeFailed)
	}

	match, err := security.VerifyPassword(currentPassword, principal.PasswordHash)
	if err != nil || !match {
		return domain.Fail[MessagePayload](msgWrongCurrentPassword)
	}

	if err := s.policy.Validate(newPassword); err != nil {
		return domain.Fail[MessagePayload](err.Error())
	}
	if err := security.RequireDifferentFrom(currentPassword).Validate(newPassword); err != nil {
		return domain.Fail[MessagePayload](err.Error())
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("change password: hash password", zap.Error(err))
		return domain.Fail[MessagePayload](msgChangeFailed)
	}

	if err := s.users.UpdatePassword(ctx, principal.ID, passwordHash, s.now().UTC()); err != nil {
		s.logger.Error("change password: update password", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[MessagePayload](msgChangeFailed)
	}

	if err := s.users.UpdateRotationState(ctx, principal.ID, domain.RotationState{}); err != nil {
		s.logger.Warn("change password: clear rotation state", zap.Error(err), zap.String("principal_id", principal.ID))
	}

	return domain.Ok(MessagePayload{Message: "password updated"})
}

func (s *PasswordResetService) publishResetRequested(ctx context.Context, principalID, email, token string, expiresAt time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PasswordResetRequestedEvent{
		PrincipalID: principalID,
		Email:       email,
		ResetToken:  token,
		RequestedAt: s.now().UTC(),
		ExpiresAt:   expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish reset event", zap.Error(err), zap.String("principal_id", principalID))
	}
}
