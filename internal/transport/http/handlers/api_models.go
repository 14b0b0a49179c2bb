package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starcoex/auth-platform/internal/core/domain"
)

// ErrorResponse represents a generic error payload with the request ID for correlation.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request correlation id.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID := c.Writer.Header().Get("X-Request-ID")
	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestID,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary describes the principal view returned by the API.
type UserSummary struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	IsActive   bool       `json:"is_active"`
	Roles      []string   `json:"roles,omitempty"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	RememberMe bool       `json:"remember_me,omitempty"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse describes a completed login with an issued token bundle.
type LoginResponse struct {
	AccessToken   string      `json:"access_token"`
	AccessExpiry  time.Time   `json:"access_expiry"`
	RefreshToken  string      `json:"refresh_token,omitempty"`
	RefreshExpiry *time.Time  `json:"refresh_expiry,omitempty"`
	TokenType     string      `json:"token_type"`
	User          UserSummary `json:"user"`
}

// TwoFactorChallengeResponse is returned when a login requires an OTP to complete.
type TwoFactorChallengeResponse struct {
	TwoFactorRequired bool        `json:"two_factor_required"`
	TwoFactorToken    string      `json:"two_factor_token"`
	User              UserSummary `json:"user"`
}

// TwoFactorVerifyRequest carries the challenge token and the one-time code.
type TwoFactorVerifyRequest struct {
	TwoFactorToken string `json:"two_factor_token" binding:"required"`
	Code           string `json:"code" binding:"required"`
	RememberMe     bool   `json:"remember_me"`
}

// TwoFactorToggleRequest enables or disables two-factor authentication.
type TwoFactorToggleRequest struct {
	Enable bool `json:"enable"`
}

// TwoFactorToggleResponse reports the new two-factor state. Secret and
// provisioning URI are present only when enabling.
type TwoFactorToggleResponse struct {
	Enabled         bool   `json:"enabled"`
	Secret          string `json:"secret,omitempty"`
	ProvisioningURI string `json:"provisioning_uri,omitempty"`
}

// RefreshRequest optionally carries the refresh token; cookie clients omit it.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegisterResponse contains registration results and next steps.
type RegisterResponse struct {
	User               UserSummary `json:"user"`
	ActivationRequired bool        `json:"activation_required"`
	Message            string      `json:"message,omitempty"`
}

// VerifyEmailRequest holds the activation token and code pair.
type VerifyEmailRequest struct {
	ActivationToken string `json:"activation_token" binding:"required"`
	Code            string `json:"code" binding:"required"`
}

// VerifyEmailResponse is returned after a successful activation.
type VerifyEmailResponse struct {
	Activated bool        `json:"activated"`
	User      UserSummary `json:"user"`
}

// ResendVerificationRequest asks for fresh activation artifacts.
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// EmailChangeRequest starts a verified email change.
type EmailChangeRequest struct {
	NewEmail string `json:"new_email" binding:"required,email"`
}

// EmailChangeVerifyRequest completes a pending email change.
type EmailChangeVerifyRequest struct {
	ActivationToken string `json:"activation_token" binding:"required"`
	Code            string `json:"code" binding:"required"`
}

// PasswordResetRequest initiates forgotten-password recovery.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// PasswordResetConfirmRequest completes a password reset.
type PasswordResetConfirmRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// PasswordChangeRequest replaces the password of an authenticated principal.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// newUserSummary converts a principal to the API view.
func newUserSummary(user domain.Principal) UserSummary {
	summary := UserSummary{
		ID:         user.ID,
		Email:      user.Email,
		IsActive:   user.IsActive,
		RememberMe: user.RememberMe,
		LastLogin:  user.LastLogin,
	}

	if len(user.Roles) > 0 {
		roles := make([]string, len(user.Roles))
		copy(roles, user.Roles)
		summary.Roles = roles
	}

	return summary
}
