package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/starcoex/auth-platform/internal/core/domain"
	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/infra/config"
	applogger "github.com/starcoex/auth-platform/internal/infra/logger"
	"github.com/starcoex/auth-platform/internal/infra/security"
	"github.com/starcoex/auth-platform/internal/repository"
)

const (
	activationCodeLength  = 6
	msgEmailTaken         = "an account with this email already exists"
	msgRegistrationFailed = "registration failed"
)

// RegistrationService creates inactive principals and hands them off to the
// activation flow. Verification email delivery happens out of band, through
// the event bus.
type RegistrationService struct {
	cfg       *config.AppConfig
	users     port.UserStore
	policy    *security.PasswordValidator
	artifacts *ActivationService
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	cfg *config.AppConfig,
	users port.UserStore,
	policy *security.PasswordValidator,
	activations *ActivationService,
	events port.EventPublisher,
	log *zap.Logger,
) (*RegistrationService, error) {
	if cfg == nil || users == nil || activations == nil {
		return nil, errors.New("registration service: missing dependency")
	}
	if policy == nil {
		policy = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &RegistrationService{
		cfg:       cfg,
		users:     users,
		policy:    policy,
		artifacts: activations,
		events:    events,
		logger:    log,
		now:       time.Now,
	}, nil
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Password string
}

// RegisterPayload describes a freshly created, not yet activated account.
type RegisterPayload struct {
	User               domain.Principal `json:"user"`
	ActivationRequired bool             `json:"activation_required"`
}

// RegisterResult is the discriminated outcome of a registration.
type RegisterResult = domain.Result[RegisterPayload]

// Register creates an inactive principal, issues activation artifacts, and
// publishes the registration events. The account cannot log in until the
// activation flow flips it active.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) RegisterResult {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Fail[RegisterPayload]("invalid email address")
	}

	if err := s.policy.Validate(input.Password); err != nil {
		return domain.Fail[RegisterPayload](err.Error())
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("register: hash password", zap.Error(err))
		return domain.Fail[RegisterPayload](msgRegistrationFailed)
	}

	now := s.now().UTC()
	principal := domain.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     false,
		Roles:        []string{"user"},
		RegisteredAt: now,
	}

	if err := s.users.Create(ctx, principal); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Fail[RegisterPayload](msgEmailTaken)
		}
		s.logger.Error("register: create principal", zap.Error(err), zap.String("email", applogger.MaskEmail(email)))
		return domain.Fail[RegisterPayload](msgRegistrationFailed)
	}

	if err := s.artifacts.issueActivation(ctx, principal, nil); err != nil {
		// The account exists; a resend can recover the activation artifacts.
		s.logger.Error("register: issue activation", zap.Error(err), zap.String("principal_id", principal.ID))
	}

	s.publishRegistered(ctx, principal, now)

	return domain.Ok(RegisterPayload{
		User:               principal.Sanitized(),
		ActivationRequired: true,
	})
}

func (s *RegistrationService) publishRegistered(ctx context.Context, principal domain.Principal, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PrincipalRegisteredEvent{
		PrincipalID:  principal.ID,
		Email:        principal.Email,
		RegisteredAt: at,
	}
	if err := s.events.PublishPrincipalRegistered(ctx, event); err != nil {
		s.logger.Warn("publish registered event", zap.Error(err), zap.String("principal_id", principal.ID))
	}
}
