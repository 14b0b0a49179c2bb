package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FailureCase maps a flow failure message to an HTTP status code.
type FailureCase struct {
	Message string
	Status  int
}

// RespondWithFailure resolves a failure message against known cases or falls
// back to the provided status. The message itself is the response body; flows
// already phrase their failures for clients.
func RespondWithFailure(c *gin.Context, message string, cases []FailureCase, fallbackStatus int) {
	status := fallbackStatus
	if status == 0 {
		status = http.StatusBadRequest
	}

	for _, cs := range cases {
		if cs.Message == message {
			status = cs.Status
			break
		}
	}

	c.JSON(status, NewErrorResponse(c, message))
}
