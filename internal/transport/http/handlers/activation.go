package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/starcoex/auth-platform/internal/transport/http/middleware"
	"github.com/starcoex/auth-platform/internal/usecase"
)

// ActivationHandler exposes email verification and email change endpoints.
type ActivationHandler struct {
	activations *usecase.ActivationService
}

// NewActivationHandler constructs an activation handler.
func NewActivationHandler(activations *usecase.ActivationService) *ActivationHandler {
	return &ActivationHandler{activations: activations}
}

// RegisterRoutes binds the activation routes to the provided router group.
func (h *ActivationHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.POST("/verify", h.VerifyEmail)
	r.POST("/resend", h.ResendVerification)

	if requireAuth != nil {
		r.POST("/email/change", requireAuth, h.RequestEmailChange)
		r.POST("/email/verify", requireAuth, h.VerifyEmailChange)
	}
}

var activationFailureCases = []FailureCase{
	{Message: "invalid or expired activation code", Status: http.StatusUnauthorized},
	{Message: "account is already verified", Status: http.StatusConflict},
	{Message: "activation failed", Status: http.StatusInternalServerError},
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Description Activates a registered account when the activation token and code match.
// @Tags Activation
// @Accept json
// @Produce json
// @Param request body VerifyEmailRequest true "Verification request"
// @Success 200 {object} VerifyEmailResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/activation/verify [post]
func (h *ActivationHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "activation_token and code are required"))
		return
	}

	result := h.activations.VerifyEmail(c.Request.Context(), req.ActivationToken, req.Code)
	if !result.OK {
		RespondWithFailure(c, result.Error, activationFailureCases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, VerifyEmailResponse{
		Activated: result.Payload.Activated,
		User:      newUserSummary(result.Payload.User),
	})
}

// ResendVerification godoc
// @Summary Resend the activation code
// @Description Issues a fresh activation pair for an unverified account; the previous pair stops working.
// @Tags Activation
// @Accept json
// @Produce json
// @Param request body ResendVerificationRequest true "Resend request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/activation/resend [post]
func (h *ActivationHandler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	result := h.activations.ResendVerificationCode(c.Request.Context(), req.Email)
	if !result.OK {
		RespondWithFailure(c, result.Error, activationFailureCases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: result.Payload.Message})
}

// RequestEmailChange godoc
// @Summary Request an email change
// @Description Sends a verification code to the new address; the change applies only after verification.
// @Tags Activation
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body EmailChangeRequest true "Email change request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/activation/email/change [post]
func (h *ActivationHandler) RequestEmailChange(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req EmailChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "new_email is required"))
		return
	}

	result := h.activations.RequestEmailChange(c.Request.Context(), userID, req.NewEmail)
	if !result.OK {
		cases := []FailureCase{
			{Message: "an account with this email already exists", Status: http.StatusConflict},
			{Message: "account not found", Status: http.StatusNotFound},
			{Message: "activation failed", Status: http.StatusInternalServerError},
		}
		RespondWithFailure(c, result.Error, cases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: result.Payload.Message})
}

// VerifyEmailChange godoc
// @Summary Complete an email change
// @Description Applies the pending email change once the code from the new address checks out.
// @Tags Activation
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body EmailChangeVerifyRequest true "Email change verification"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/activation/email/verify [post]
func (h *ActivationHandler) VerifyEmailChange(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req EmailChangeVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "activation_token and code are required"))
		return
	}

	result := h.activations.VerifyEmailChange(c.Request.Context(), userID, req.ActivationToken, req.Code)
	if !result.OK {
		cases := []FailureCase{
			{Message: "invalid or expired activation code", Status: http.StatusUnauthorized},
			{Message: "no pending email change", Status: http.StatusConflict},
			{Message: "an account with this email already exists", Status: http.StatusConflict},
			{Message: "activation failed", Status: http.StatusInternalServerError},
		}
		RespondWithFailure(c, result.Error, cases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: result.Payload.Message})
}
