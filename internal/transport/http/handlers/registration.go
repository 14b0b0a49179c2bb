package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/starcoex/auth-platform/internal/usecase"
)

// RegistrationHandler exposes the account registration endpoint.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
}

// NewRegistrationHandler constructs a registration handler.
func NewRegistrationHandler(registration *usecase.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// RegisterRoutes binds the registration routes to the provided router group.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/register", h.Register)
}

// Register godoc
// @Summary Register a new account
// @Description Creates an inactive account and sends an activation code to the email address.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	result := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if !result.OK {
		cases := []FailureCase{
			{Message: "an account with this email already exists", Status: http.StatusConflict},
			{Message: "registration failed", Status: http.StatusInternalServerError},
		}
		RespondWithFailure(c, result.Error, cases, http.StatusBadRequest)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		User:               newUserSummary(result.Payload.User),
		ActivationRequired: result.Payload.ActivationRequired,
		Message:            "check your email for the activation code",
	})
}
