package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/starcoex/auth-platform/internal/transport/http/middleware"
	"github.com/starcoex/auth-platform/internal/usecase"
)

// PasswordHandler exposes forgotten-password recovery endpoints.
type PasswordHandler struct {
	resets *usecase.PasswordResetService
}

// NewPasswordHandler constructs a password handler.
func NewPasswordHandler(resets *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{resets: resets}
}

// RegisterRoutes binds the password routes to the provided router group.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	if r == nil {
		return
	}

	r.POST("/reset/request", h.RequestReset)
	r.POST("/reset/confirm", h.ConfirmReset)

	if requireAuth != nil {
		r.POST("/change", requireAuth, h.ChangePassword)
	}
}

// RequestReset godoc
// @Summary Request a password reset
// @Description Sends a reset token to the account's email. The response does not reveal whether the account exists.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Reset request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/password/reset/request [post]
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	result := h.resets.RequestReset(c.Request.Context(), req.Email)
	if !result.OK {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, result.Error))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: result.Payload.Message})
}

// ChangePassword godoc
// @Summary Change the current password
// @Description Replaces the password after verifying the current one. Existing refresh tokens are invalidated.
// @Tags Password
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body PasswordChangeRequest true "Password change"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/password/change [post]
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "current_password and new_password are required"))
		return
	}

	result := h.resets.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if !result.OK {
		cases := []FailureCase{
			{Message: "current password is incorrect", Status: http.StatusUnauthorized},
			{Message: "password change failed", Status: http.StatusInternalServerError},
		}
		RespondWithFailure(c, result.Error, cases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: result.Payload.Message})
}

// ConfirmReset godoc
// @Summary Complete a password reset
// @Description Replaces the password when the reset token matches the latest issued one. Existing sessions are invalidated.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordResetConfirmRequest true "Reset confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/password/reset/confirm [post]
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "reset_token and new_password are required"))
		return
	}

	result := h.resets.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword)
	if !result.OK {
		cases := []FailureCase{
			{Message: "invalid or expired reset token", Status: http.StatusUnauthorized},
			{Message: "password reset failed", Status: http.StatusInternalServerError},
		}
		RespondWithFailure(c, result.Error, cases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: result.Payload.Message})
}
