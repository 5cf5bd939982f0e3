package handlers

import (
	"errors"
	"fmt"
	"strings"

	"nexus-care/internal/api/middleware"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// respondError maps service errors onto the HTTP status contract. Anything
// unrecognised is a 500 whose detail only reaches the server log.
func respondError(c *gin.Context, log *zap.Logger, operation string, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUserExists):
		c.JSON(409, gin.H{"error": "Email already exists"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(401, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(401, gin.H{"error": "Unauthorized"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(403, gin.H{"error": "Admins Only"})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(404, gin.H{"error": "User not found"})
	case errors.Is(err, services.ErrComplaintNotFound):
		c.JSON(404, gin.H{"error": "Complaint not found"})
	default:
		log.Error(operation+" error",
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
		c.JSON(500, gin.H{"error": "Internal Error"})
	}
}

// bindError reports a rejected request body. Only the first failed
// validation rule is reported.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		c.JSON(400, gin.H{"error": "Invalid request body"})
		return
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		c.JSON(400, gin.H{"error": "Missing fields"})
	case "email":
		c.JSON(400, gin.H{"error": "Invalid email"})
	case "max":
		c.JSON(400, gin.H{"error": fmt.Sprintf("%s must be at most %s characters", field, fe.Param())})
	default:
		c.JSON(400, gin.H{"error": "Invalid " + field})
	}
}
