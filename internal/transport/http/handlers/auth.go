package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/starcoex/auth-platform/internal/core/port"
	"github.com/starcoex/auth-platform/internal/transport/http/middleware"
	"github.com/starcoex/auth-platform/internal/usecase"
)

// AuthHandler exposes login, two-factor, refresh, and logout endpoints.
type AuthHandler struct {
	auth          *usecase.AuthService
	secureCookies bool
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(auth *usecase.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookies: secureCookies}
}

// RegisterRoutes binds the auth routes to the provided router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, loginMiddlewares, twoFactorMiddlewares []gin.HandlerFunc) {
	if r == nil {
		return
	}

	loginChain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	loginChain = append(loginChain, h.Login)
	r.POST("/login", loginChain...)

	verifyChain := append([]gin.HandlerFunc{}, twoFactorMiddlewares...)
	verifyChain = append(verifyChain, h.VerifyTwoFactor)
	r.POST("/2fa/verify", verifyChain...)

	r.POST("/refresh", h.Refresh)

	if requireAuth != nil {
		r.POST("/logout", requireAuth, h.Logout)
		r.POST("/2fa/toggle", requireAuth, h.ToggleTwoFactor)
	}
}

var loginFailureCases = []FailureCase{
	{Message: "invalid credentials", Status: http.StatusUnauthorized},
	{Message: "email not verified", Status: http.StatusForbidden},
	{Message: "login failed", Status: http.StatusInternalServerError},
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Verifies credentials and issues tokens, or returns a two-factor challenge.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	binder := NewCookieBinder(c, h.secureCookies)
	result := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	}, binder)

	if !result.OK {
		RespondWithFailure(c, result.Error, loginFailureCases, http.StatusBadRequest)
		return
	}

	if result.Payload.TwoFactorRequired {
		c.JSON(http.StatusOK, TwoFactorChallengeResponse{
			TwoFactorRequired: true,
			TwoFactorToken:    result.Payload.TwoFactorToken,
			User:              newUserSummary(result.Payload.User),
		})
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result.Payload))
}

var twoFactorFailureCases = []FailureCase{
	{Message: "invalid challenge token", Status: http.StatusUnauthorized},
	{Message: "challenge token expired", Status: http.StatusUnauthorized},
	{Message: "invalid two-factor code", Status: http.StatusUnauthorized},
	{Message: "too many verification attempts", Status: http.StatusTooManyRequests},
	{Message: "two-factor authentication is not configured", Status: http.StatusConflict},
	{Message: "login failed", Status: http.StatusInternalServerError},
}

// VerifyTwoFactor godoc
// @Summary Complete a two-factor login
// @Description Exchanges a pending challenge token plus a valid OTP for a token bundle.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body TwoFactorVerifyRequest true "Two-factor verification request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/2fa/verify [post]
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "two_factor_token and code are required"))
		return
	}

	binder := NewCookieBinder(c, h.secureCookies)
	result := h.auth.VerifyTwoFactor(c.Request.Context(), usecase.VerifyTwoFactorInput{
		ChallengeToken: req.TwoFactorToken,
		OTP:            req.Code,
		RememberMe:     req.RememberMe,
	}, binder)

	if !result.OK {
		RespondWithFailure(c, result.Error, twoFactorFailureCases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result.Payload))
}

var refreshFailureCases = []FailureCase{
	{Message: "invalid refresh token", Status: http.StatusUnauthorized},
	{Message: "refresh tokens are not enabled", Status: http.StatusNotImplemented},
	{Message: "email not verified", Status: http.StatusForbidden},
	{Message: "login failed", Status: http.StatusInternalServerError},
}

// Refresh godoc
// @Summary Refresh the access token
// @Description Rotates the refresh token and issues a new token bundle. The token is read from the body or the Refresh cookie.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh request"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	_ = c.ShouldBindJSON(&req)

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := c.Cookie(port.RefreshTokenBinding); err == nil {
			token = strings.TrimSpace(cookie)
		}
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "refresh token is required"))
		return
	}

	binder := NewCookieBinder(c, h.secureCookies)
	result := h.auth.Refresh(c.Request.Context(), token, binder)

	if !result.OK {
		RespondWithFailure(c, result.Error, refreshFailureCases, http.StatusUnauthorized)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result.Payload))
}

// Logout godoc
// @Summary Log out
// @Description Clears the stored rotation state and expires auth cookies. Safe to repeat.
// @Tags Auth
// @Security Bearer
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	binder := NewCookieBinder(c, h.secureCookies)
	result := h.auth.Logout(c.Request.Context(), userID, binder)

	if !result.OK {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, result.Error))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

// ToggleTwoFactor godoc
// @Summary Enable or disable two-factor authentication
// @Description Enabling returns a fresh TOTP secret and provisioning URI; disabling clears both secret and flag.
// @Tags Auth
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body TwoFactorToggleRequest true "Toggle request"
// @Success 200 {object} TwoFactorToggleResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/2fa/toggle [post]
func (h *AuthHandler) ToggleTwoFactor(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "enable flag is required"))
		return
	}

	result := h.auth.ToggleTwoFactor(c.Request.Context(), userID, req.Enable)
	if !result.OK {
		cases := []FailureCase{
			{Message: "account not found", Status: http.StatusNotFound},
			{Message: "two-factor authentication is already disabled", Status: http.StatusConflict},
			{Message: "two-factor update failed", Status: http.StatusInternalServerError},
		}
		RespondWithFailure(c, result.Error, cases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, TwoFactorToggleResponse{
		Enabled:         result.Payload.Enabled,
		Secret:          result.Payload.Secret,
		ProvisioningURI: result.Payload.ProvisioningURI,
	})
}

func newLoginResponse(payload usecase.LoginPayload) LoginResponse {
	resp := LoginResponse{
		AccessToken:  payload.AccessToken,
		AccessExpiry: payload.AccessExpiry,
		TokenType:    "Bearer",
		User:         newUserSummary(payload.User),
	}

	if payload.RefreshToken != "" {
		resp.RefreshToken = payload.RefreshToken
		expiry := payload.RefreshExpiry
		resp.RefreshExpiry = &expiry
	}

	return resp
}
