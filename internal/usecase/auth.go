package usecase

import (
	"context"
	"errors"
	"fmt"
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

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveAccount indicates the account has not completed email verification.
	ErrInactiveAccount = errors.New("email not verified")
	// ErrInvalidChallengeToken indicates the two-factor challenge token is missing, malformed, or not pending.
	ErrInvalidChallengeToken = errors.New("invalid challenge token")
	// ErrInvalidOTP indicates the one-time code did not match within the accepted window.
	ErrInvalidOTP = errors.New("invalid two-factor code")
	// ErrTooManyAttempts indicates the challenge exhausted its OTP attempt budget.
	ErrTooManyAttempts = errors.New("too many verification attempts")
	// ErrInvalidRefreshToken indicates the refresh token failed verification or was rotated away.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrRefreshUnavailable indicates refresh token issuance is disabled by configuration.
	ErrRefreshUnavailable = errors.New("refresh tokens are not enabled")
	// ErrInvalidAccessToken indicates the provided access token is malformed or wrongly signed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the provided access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrTwoFactorDisabled indicates a disable request for an already-disabled account.
	ErrTwoFactorDisabled = errors.New("two-factor authentication is already disabled")
)

// failure messages returned at the boundary. Login failures are deliberately
// indistinguishable between unknown email and wrong password so the endpoint
// cannot be used for account enumeration.
const (
	msgInvalidCredentials = "invalid credentials"
	msgEmailNotVerified   = "email not verified"
	msgLoginFailed        = "login failed"
)

// AuthService composes credential verification, token issuance, the
// two-factor engine, and rotation-state persistence into the login, refresh,
// challenge, toggle, and logout flows. All public methods convert internal
// faults into Result values; they never propagate errors to callers.
type AuthService struct {
	cfg         *config.AppConfig
	users       port.UserStore
	activations port.ActivationStore
	signer      *security.TokenSigner
	totp        *security.TOTPEngine
	challenges  port.ChallengeStore
	events      port.EventPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserStore,
	activations port.ActivationStore,
	signer *security.TokenSigner,
	totp *security.TOTPEngine,
	challenges port.ChallengeStore,
	events port.EventPublisher,
	log *zap.Logger,
) (*AuthService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if activations == nil {
		return nil, fmt.Errorf("activation store is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("token signer is required")
	}
	if totp == nil {
		totp = security.NewTOTPEngine(security.TOTPConfig{
			Issuer: cfg.TOTP.Issuer,
			Digits: cfg.TOTP.Digits,
			Period: cfg.TOTP.Period,
			Skew:   cfg.TOTP.Skew,
		})
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		cfg:         cfg,
		users:       users,
		activations: activations,
		signer:      signer,
		totp:        totp,
		challenges:  challenges,
		events:      events,
		logger:      log,
		now:         time.Now,
	}, nil
}

// LoginInput carries the credentials presented to Login.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// LoginPayload is the success payload shared by login, two-factor
// verification, and refresh.
type LoginPayload struct {
	AccessToken       string           `json:"access_token,omitempty"`
	AccessExpiry      time.Time        `json:"access_expiry,omitempty"`
	RefreshToken      string           `json:"refresh_token,omitempty"`
	RefreshExpiry     time.Time        `json:"refresh_expiry,omitempty"`
	TwoFactorRequired bool             `json:"two_factor_required"`
	TwoFactorToken    string           `json:"two_factor_token,omitempty"`
	User              domain.Principal `json:"user"`
}

// LoginResult is the discriminated outcome of an authentication flow.
type LoginResult = domain.Result[LoginPayload]

// Login validates credentials and either issues a token bundle or, when
// two-factor authentication is enabled, a short-lived pending challenge token.
func (s *AuthService) Login(ctx context.Context, input LoginInput, rc port.ResponseChannel) LoginResult {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return domain.Fail[LoginPayload](msgInvalidCredentials)
	}

	principal, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[LoginPayload](msgInvalidCredentials)
		}
		s.logger.Error("login: lookup principal", zap.Error(err), zap.String("email", applogger.MaskEmail(email)))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}

	ok, err := security.VerifyPassword(input.Password, principal.PasswordHash)
	if err != nil {
		s.logger.Error("login: verify password", zap.Error(err))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}
	if !ok {
		return domain.Fail[LoginPayload](msgInvalidCredentials)
	}

	if !principal.IsActive {
		return domain.Fail[LoginPayload](msgEmailNotVerified)
	}

	activation, err := s.loadActivation(ctx, principal.ID)
	if err != nil {
		s.logger.Error("login: load activation", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}

	if activation.TwoFactorReady() {
		challenge, _, err := s.signer.Issue(security.PurposeTwoFactor, security.IssueOptions{
			UserID:  principal.ID,
			TTL:     s.cfg.JWT.TwoFactorChallengeTTL,
			Pending: true,
		})
		if err != nil {
			s.logger.Error("login: issue challenge token", zap.Error(err))
			return domain.Fail[LoginPayload](msgLoginFailed)
		}

		return domain.Ok(LoginPayload{
			TwoFactorRequired: true,
			TwoFactorToken:    challenge,
			User:              principal.Sanitized(),
		})
	}

	return s.completeLogin(ctx, *principal, input.RememberMe, false, rc)
}

// VerifyTwoFactorInput carries the pending challenge token and the OTP.
type VerifyTwoFactorInput struct {
	ChallengeToken string
	OTP            string
	RememberMe     bool
}

// VerifyTwoFactor exits the pending state: both a valid challenge token and a
// matching OTP are required; possession of one without the other fails.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, input VerifyTwoFactorInput, rc port.ResponseChannel) LoginResult {
	claims, err := s.signer.Verify(input.ChallengeToken, security.PurposeTwoFactor)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return domain.Fail[LoginPayload]("challenge token expired")
		}
		return domain.Fail[LoginPayload](ErrInvalidChallengeToken.Error())
	}
	if !claims.Pending {
		return domain.Fail[LoginPayload](ErrInvalidChallengeToken.Error())
	}

	if s.challenges != nil {
		attempts, err := s.challenges.RecordAttempt(ctx, claims.ID, s.cfg.JWT.TwoFactorChallengeTTL)
		if err != nil {
			s.logger.Warn("two-factor: record attempt", zap.Error(err))
		} else if max := s.cfg.TOTP.MaxAttempts; max > 0 && attempts > max {
			return domain.Fail[LoginPayload](ErrTooManyAttempts.Error())
		}
	}

	principal, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[LoginPayload](ErrInvalidChallengeToken.Error())
		}
		s.logger.Error("two-factor: lookup principal", zap.Error(err))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}

	activation, err := s.loadActivation(ctx, principal.ID)
	if err != nil {
		s.logger.Error("two-factor: load activation", zap.Error(err))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}
	if !activation.TwoFactorReady() {
		return domain.Fail[LoginPayload]("two-factor authentication is not configured")
	}

	matched, err := s.totp.VerifyCode(*activation.TwoFactorSecret, input.OTP, s.now().UTC())
	if err != nil {
		s.logger.Error("two-factor: verify code", zap.Error(err))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}
	if !matched {
		return domain.Fail[LoginPayload](ErrInvalidOTP.Error())
	}

	if s.challenges != nil {
		if err := s.challenges.ClearAttempts(ctx, claims.ID); err != nil {
			s.logger.Warn("two-factor: clear attempts", zap.Error(err))
		}
	}

	return s.completeLogin(ctx, *principal, input.RememberMe, true, rc)
}

// Refresh validates the presented refresh token against the current stored
// hash, rotates it, and issues a fresh token bundle. Rotation is
// last-write-wins: once the new hash lands, the previous token no longer
// matches and is implicitly invalid.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string, rc port.ResponseChannel) LoginResult {
	if !s.cfg.JWT.RefreshRotationEnabled {
		return domain.Fail[LoginPayload](ErrRefreshUnavailable.Error())
	}

	claims, err := s.signer.Verify(rawRefreshToken, security.PurposeRefresh)
	if err != nil {
		return domain.Fail[LoginPayload](ErrInvalidRefreshToken.Error())
	}

	principal, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[LoginPayload](ErrInvalidRefreshToken.Error())
		}
		s.logger.Error("refresh: lookup principal", zap.Error(err))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}

	if !principal.HasRotationState() || !security.VerifyTokenHash(rawRefreshToken, *principal.RefreshTokenHash) {
		return domain.Fail[LoginPayload](ErrInvalidRefreshToken.Error())
	}

	if !principal.IsActive {
		return domain.Fail[LoginPayload](msgEmailNotVerified)
	}

	return s.completeLogin(ctx, *principal, principal.RememberMe, false, rc)
}

// completeLogin issues the token bundle, persists rotation state as the final
// step, binds tokens to the response channel, and reports the login event.
func (s *AuthService) completeLogin(ctx context.Context, principal domain.Principal, rememberMe, twoFactor bool, rc port.ResponseChannel) LoginResult {
	bundle, err := s.issueBundle(principal.ID, rememberMe)
	if err != nil {
		s.logger.Error("issue token bundle", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}

	state := domain.RotationState{RememberMe: rememberMe}
	if bundle.HasRefresh() {
		hash := security.HashToken(bundle.RefreshToken)
		state.RefreshTokenHash = &hash
	}
	if err := s.users.UpdateRotationState(ctx, principal.ID, state); err != nil {
		s.logger.Error("persist rotation state", zap.Error(err), zap.String("principal_id", principal.ID))
		return domain.Fail[LoginPayload](msgLoginFailed)
	}

	if err := s.users.RecordLogin(ctx, principal.ID, s.now().UTC()); err != nil {
		s.logger.Warn("record login", zap.Error(err), zap.String("principal_id", principal.ID))
	}

	s.bindBundle(rc, bundle)
	s.publishLoggedIn(ctx, principal, rememberMe, twoFactor)

	sanitized := principal.Sanitized()
	sanitized.RememberMe = rememberMe

	return domain.Ok(LoginPayload{
		AccessToken:   bundle.AccessToken,
		AccessExpiry:  bundle.AccessExpiry,
		RefreshToken:  bundle.RefreshToken,
		RefreshExpiry: bundle.RefreshExpiry,
		User:          sanitized,
	})
}

func (s *AuthService) issueBundle(principalID string, rememberMe bool) (domain.TokenBundle, error) {
	accessToken, accessExpiry, err := s.signer.Issue(security.PurposeAccess, security.IssueOptions{
		UserID: principalID,
		TTL:    s.cfg.JWT.AccessTokenTTL(rememberMe),
	})
	if err != nil {
		return domain.TokenBundle{}, fmt.Errorf("issue access token: %w", err)
	}

	bundle := domain.TokenBundle{
		AccessToken:  accessToken,
		AccessExpiry: accessExpiry,
	}

	if s.cfg.JWT.RefreshRotationEnabled {
		refreshToken, refreshExpiry, err := s.signer.Issue(security.PurposeRefresh, security.IssueOptions{
			UserID: principalID,
			TTL:    s.cfg.JWT.RefreshTokenTTL(rememberMe),
		})
		if err != nil {
			return domain.TokenBundle{}, fmt.Errorf("issue refresh token: %w", err)
		}
		bundle.RefreshToken = refreshToken
		bundle.RefreshExpiry = refreshExpiry
	}

	return bundle, nil
}

func (s *AuthService) bindBundle(rc port.ResponseChannel, bundle domain.TokenBundle) {
	if rc == nil {
		return
	}
	rc.BindToken(port.AccessTokenBinding, bundle.AccessToken, bundle.AccessExpiry)
	if bundle.HasRefresh() {
		rc.BindToken(port.RefreshTokenBinding, bundle.RefreshToken, bundle.RefreshExpiry)
	}
}

func (s *AuthService) publishLoggedIn(ctx context.Context, principal domain.Principal, rememberMe, twoFactor bool) {
	if s.events == nil {
		return
	}
	event := domain.LoggedInEvent{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		RememberMe:  rememberMe,
		TwoFactor:   twoFactor,
		LoggedInAt:  s.now().UTC(),
	}
	if err := s.events.PublishLoggedIn(ctx, event); err != nil {
		s.logger.Warn("publish logged-in event", zap.Error(err), zap.String("principal_id", principal.ID))
	}
}

// ToggleTwoFactorPayload reports the outcome of a two-factor toggle.
type ToggleTwoFactorPayload struct {
	Enabled         bool   `json:"enabled"`
	Secret          string `json:"secret,omitempty"`
	ProvisioningURI string `json:"provisioning_uri,omitempty"`
}

// ToggleTwoFactorResult is the discriminated outcome of a toggle.
type ToggleTwoFactorResult = domain.Result[ToggleTwoFactorPayload]

// ToggleTwoFactor enables or disables TOTP for a principal. Enabling
// generates a fresh secret and stores it together with the flag in one
// write; disabling clears both, so secret and flag never diverge.
func (s *AuthService) ToggleTwoFactor(ctx context.Context, principalID string, enable bool) ToggleTwoFactorResult {
	principal, err := s.users.GetByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Fail[ToggleTwoFactorPayload]("account not found")
		}
		s.logger.Error("toggle two-factor: lookup principal", zap.Error(err))
		return domain.Fail[ToggleTwoFactorPayload]("two-factor update failed")
	}

	if enable {
		secret, err := s.totp.GenerateSecret(principal.Email)
		if err != nil {
			s.logger.Error("toggle two-factor: generate secret", zap.Error(err))
			return domain.Fail[ToggleTwoFactorPayload]("two-factor update failed")
		}

		if err := s.activations.SetTwoFactor(ctx, principal.ID, &secret.Base32, true); err != nil {
			s.logger.Error("toggle two-factor: store secret", zap.Error(err))
			return domain.Fail[ToggleTwoFactorPayload]("two-factor update failed")
		}

		return domain.Ok(ToggleTwoFactorPayload{
			Enabled:         true,
			Secret:          secret.Base32,
			ProvisioningURI: secret.ProvisioningURI,
		})
	}

	activation, err := s.loadActivation(ctx, principal.ID)
	if err != nil {
		s.logger.Error("toggle two-factor: load activation", zap.Error(err))
		return domain.Fail[ToggleTwoFactorPayload]("two-factor update failed")
	}
	if !activation.TwoFactorEnabled {
		return domain.Fail[ToggleTwoFactorPayload](ErrTwoFactorDisabled.Error())
	}

	if err := s.activations.SetTwoFactor(ctx, principal.ID, nil, false); err != nil {
		s.logger.Error("toggle two-factor: clear secret", zap.Error(err))
		return domain.Fail[ToggleTwoFactorPayload]("two-factor update failed")
	}

	return domain.Ok(ToggleTwoFactorPayload{Enabled: false})
}

// LogoutPayload is the empty success payload of Logout.
type LogoutPayload struct{}

// LogoutResult is the discriminated outcome of a logout.
type LogoutResult = domain.Result[LogoutPayload]

// Logout clears the server-side rotation state and drops token bindings from
// the response channel. Calling it twice is not an error.
func (s *AuthService) Logout(ctx context.Context, principalID string, rc port.ResponseChannel) LogoutResult {
	err := s.users.UpdateRotationState(ctx, principalID, domain.RotationState{})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("logout: clear rotation state", zap.Error(err), zap.String("principal_id", principalID))
		return domain.Fail[LogoutPayload]("logout failed")
	}

	if rc != nil {
		rc.ClearToken(port.AccessTokenBinding)
		rc.ClearToken(port.RefreshTokenBinding)
	}

	return domain.Ok(LogoutPayload{})
}

// ParseAccessToken validates a bearer access token and returns its claims.
// Other services use this (via the gRPC boundary) to authenticate requests
// without re-implementing verification.
func (s *AuthService) ParseAccessToken(token string) (*security.Claims, error) {
	claims, err := s.signer.Verify(token, security.PurposeAccess)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// Authenticate resolves an access token to its principal; this is the pure
// (token, secret) -> claims function exposed at the RPC boundary.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Principal, *security.Claims, error) {
	claims, err := s.ParseAccessToken(token)
	if err != nil {
		return nil, nil, err
	}

	principal, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidAccessToken
		}
		return nil, nil, fmt.Errorf("lookup principal: %w", err)
	}

	sanitized := principal.Sanitized()
	return &sanitized, claims, nil
}

// loadActivation fetches the activation record, treating a missing row as the
// zero record (no two-factor, nothing pending).
func (s *AuthService) loadActivation(ctx context.Context, principalID string) (*domain.ActivationRecord, error) {
	record, err := s.activations.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.ActivationRecord{PrincipalID: principalID}, nil
		}
		return nil, err
	}
	return record, nil
}
