package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
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
	verificationPurposeActivation  = "activation"
	verificationPurposeEmailChange = "email_change"

	msgInvalidActivation = "invalid or expired activation code"
	msgActivationFailed  = "activation failed"
	msgAlreadyVerified   = "account is already verified"
)

// ActivationService owns email verification: the initial account activation
// after registration and verified email changes. Activation artifacts are a
// paired six-digit code and a signed token; presenting the latest pair
// consumes it, and issuing a new pair invalidates the previous one.
type ActivationService struct {
	cfg         *config.AppConfig
	users       port.UserStore
	activations port.ActivationStore
	signer      *security.TokenSigner
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewActivationService constructs an ActivationService instance.
func NewActivationService(
	cfg *config.AppConfig,
	users port.UserStore,
	activations port.ActivationStore,
	signer *security.TokenSigner,
	events port.EventPublisher,
	log *zap.Logger,
) (*ActivationService, error) {
	if cfg == nil || users == nil || activations == nil || signer == nil {
		return nil, errors.New("activation service: missing dependency")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ActivationService{
		cfg:         cfg,
		users:       users,
		activations: activations,
		signer:      signer,
		events:      events,
		logger:      log,
		now:         time.Now,
	}, nil
}

// issueActivation mints a fresh code/token pair, stores it (replacing any
// previous pair), and publishes the verification event. The raw token travels
// only in the event; the store keeps its digest.
func (s *ActivationService) issueActivation(ctx context.Context, principal domain.Principal, requestedEmail *string) error {
	code, err := security.GenerateNumericCode(activationCodeLength)
	if err != nil {
		return err
	}

	token, expiry, err := s.signer.Issue(security.PurposeActivation, security.IssueOptions{
		UserID: principal.ID,
		TTL:    s.cfg.JWT.ActivationTTL,
		Code:   code,
	})
	if err != nil {
		return err
	}

	tokenHash := security.HashToken(token)
	if err := s.activations.SetActivationArtifacts(ctx, principal.ID, code, tokenHash, requestedEmail); err != nil {
		return err
	}

	target := principal.Email
	purpose := verificationPurposeActivation
	if requestedEmail != nil {
		target = *requestedEmail
		purpose = verificationPurposeEmailChange
	}

	s.publishVerificationRequested(ctx, principal.ID, target, code, token, purpose, expiry)
	return nil
}

// ActivationPayload describes the outcome of a successful email verification.
type ActivationPayload struct {
	Activated bool             `json:"activated"`
	User      domain.Principal `json:"user"`
}

// ActivationResult is the discriminated outcome of an activation flow.
type ActivationResult = domain.Result[ActivationPayload]

// VerifyEmail activates an account when the presented token and code match the
// latest issued pair. Consuming the pair and flipping the account active go
// together; a consumed pair cannot be replayed.
func (s *ActivationService) VerifyEmail(ctx context.Context, activationToken, code string) ActivationResult {
	claims, err := s.signer.Verify(activationToken, security.PurposeActivation)
	if err != nil {
		return domain.Fail[ActivationPayload](msgInvalidActivation)
	}

	principal, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[ActivationPayload](msgInvalidActivation)
		}
		s.logger.Error("verify email: lookup principal", zap.Error(err))
		return domain.Fail[ActivationPayload](msgActivationFailed)
	}

	if principal.IsActive {
		return domain.Fail[ActivationPayload](msgAlreadyVerified)
	}

	record, err := s.activations.Get(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[ActivationPayload](msgInvalidActivation)
		}
		s.logger.Error("verify email: load activation", zap.Error(err))
		return domain.Fail[ActivationPayload](msgActivationFailed)
	}

	if !s.artifactsMatch(record, activationToken, code, claims.Code) {
		return domain.Fail[ActivationPayload](msgInvalidActivation)
	}

	if err := s.users.Activate(ctx, principal.ID); err != nil {
		s.logger.Error("verify email: activate principal", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[ActivationPayload](msgActivationFailed)
	}
	if err := s.activations.ConsumeActivation(ctx, principal.ID); err != nil {
		s.logger.Error("verify email: consume artifacts", zap.Error(err), zap.String("principal_id", principal.ID))
	}

	activated := principal.Sanitized()
	activated.IsActive = true

	return domain.Ok(ActivationPayload{Activated: true, User: activated})
}

// MessagePayload carries a human-readable confirmation for flows with no data
// to return.
type MessagePayload struct {
	Message string `json:"message"`
}

// MessageResult is the discriminated outcome of a message-only flow.
type MessageResult = domain.Result[MessagePayload]

// ResendVerificationCode reissues activation artifacts for an inactive
// account. The previous code/token pair stops working.
func (s *ActivationService) ResendVerificationCode(ctx context.Context, email string) MessageResult {
	email = strings.TrimSpace(strings.ToLower(email))

	principal, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same response as success so the endpoint cannot confirm whether
			// an email is registered.
			return domain.Ok(MessagePayload{Message: "verification code sent"})
		}
		s.logger.Error("resend verification: lookup principal", zap.Error(err), zap.String("email", applogger.MaskEmail(email)))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}

	if principal.IsActive {
		return domain.Fail[MessagePayload](msgAlreadyVerified)
	}

	if err := s.issueActivation(ctx, *principal, nil); err != nil {
		s.logger.Error("resend verification: issue artifacts", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}

	return domain.Ok(MessagePayload{Message: "verification code sent"})
}

// RequestEmailChange issues activation artifacts for a verified change of
// address. The code is delivered to the new address, proving the requester
// controls it before the switch happens.
func (s *ActivationService) RequestEmailChange(ctx context.Context, principalID, newEmail string) MessageResult {
	newEmail = strings.TrimSpace(strings.ToLower(newEmail))
	if _, err := mail.ParseAddress(newEmail); err != nil {
		return domain.Fail[MessagePayload]("invalid email address")
	}

	principal, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[MessagePayload]("account not found")
		}
		s.logger.Error("request email change: lookup principal", zap.Error(err))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}

	if strings.EqualFold(principal.Email, newEmail) {
		return domain.Fail[MessagePayload]("new email must differ from the current one")
	}

	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return domain.Fail[MessagePayload](msgEmailTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("request email change: check email", zap.Error(err))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}

	if err := s.issueActivation(ctx, *principal, &newEmail); err != nil {
		s.logger.Error("request email change: issue artifacts", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}

	return domain.Ok(MessagePayload{Message: "verification code sent to the new address"})
}

// VerifyEmailChange applies a pending email change once the code delivered to
// the new address checks out.
func (s *ActivationService) VerifyEmailChange(ctx context.Context, principalID, activationToken, code string) MessageResult {
	claims, err := s.signer.Verify(activationToken, security.PurposeActivation)
	if err != nil || claims.UserID != principalID {
		return domain.Fail[MessagePayload](msgInvalidActivation)
	}

	record, err := s.activations.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[MessagePayload](msgInvalidActivation)
		}
		s.logger.Error("verify email change: load activation", zap.Error(err))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}

	if record.RequestedEmail == nil || *record.RequestedEmail == "" {
		return domain.Fail[MessagePayload]("no pending email change")
	}
	if !s.artifactsMatch(record, activationToken, code, claims.Code) {
		return domain.Fail[MessagePayload](msgInvalidActivation)
	}

	if err := s.users.UpdateEmail(ctx, principalID, *record.RequestedEmail); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Fail[MessagePayload](msgEmailTaken)
		}
		s.logger.Error("verify email change: update email", zap.Error(err), zap.String("principal_id", principalID))
		return domain.Fail[MessagePayload](msgActivationFailed)
	}
	if err := s.activations.ConsumeActivation(ctx, principalID); err != nil {
		s.logger.Error("verify email change: consume artifacts", zap.Error(err), zap.String("principal_id", principalID))
	}

	return domain.Ok(MessagePayload{Message: "email updated"})
}

// artifactsMatch checks the presented token and code against the stored pair.
// The token claims embed the code, so both the embedded and presented values
// must match what was last issued.
func (s *ActivationService) artifactsMatch(record *domain.ActivationRecord, token, presentedCode, claimedCode string) bool {
	if !record.HasPendingActivation() || record.ActivationToken == nil {
		return false
	}
	if !security.VerifyTokenHash(token, *record.ActivationToken) {
		return false
	}
	stored := []byte(*record.ActivationCode)
	if subtle.ConstantTimeCompare(stored, []byte(presentedCode)) != 1 {
		return false
	}
	return subtle.ConstantTimeCompare(stored, []byte(claimedCode)) == 1
}

func (s *ActivationService) publishVerificationRequested(ctx context.Context, principalID, email, code, token, purpose string, expiresAt time.Time) {
	if s.events == nil {
		return
	}
	event := domain.VerificationRequestedEvent{
		PrincipalID:     principalID,
		Email:           email,
		ActivationCode:  code,
		ActivationToken: token,
		Purpose:         purpose,
		RequestedAt:     s.now().UTC(),
		ExpiresAt:       expiresAt,
	}
	if err := s.events.PublishVerificationRequested(ctx, event); err != nil {
		s.logger.Warn("publish verification event", zap.Error(err), zap.String("principal_id", principalID))
	}
}
