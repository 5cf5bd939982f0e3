package handlers

import (
	"net/http"
	"time"

	"nexus-care/internal/api/middleware"
	"nexus-care/internal/config"
	"nexus-care/internal/models"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *services.AuthService
	sessions    *services.SessionManager
	cfg         *config.Config
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, sessions *services.SessionManager, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		cfg:         cfg,
		log:         log.Named("auth_handler"),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// Register handles self-service sign-up
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if _, err := h.authService.Register(c.Request.Context(), req.Email, req.Username, req.Password, models.Role(req.Role)); err != nil {
		respondError(c, h.log, "register", err)
		return
	}

	c.JSON(201, gin.H{"message": "Registration successful"})
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.log, "login", err)
		return
	}

	// Drop whatever session the client held before logging in.
	if previous := middleware.SessionToken(c); previous != "" {
		h.sessions.Logout(ctx, previous)
	}
	h.setSessionCookie(c, result.Token, result.ExpiresAt)

	c.JSON(200, gin.H{
		"message":  "Login success",
		"role":     result.Identity.Role,
		"username": result.Identity.Username,
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context(), middleware.SessionToken(c))
	h.clearSessionCookie(c)
	c.JSON(200, gin.H{"message": "Logged out"})
}

// CheckSession reports who is logged in
func (h *AuthHandler) CheckSession(c *gin.Context) {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		c.JSON(401, gin.H{"loggedin": false})
		return
	}

	c.JSON(200, gin.H{
		"loggedin": true,
		"user":     identity,
	})
}

// ResetPassword overwrites a password given only the account email
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		respondError(c, h.log, "reset password", err)
		return
	}

	c.JSON(200, gin.H{"message": "Password updated successfully"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.CookieName, token, maxAge, "/", h.cfg.Session.CookieDomain, h.cfg.Session.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.CookieName, "", -1, "/", h.cfg.Session.CookieDomain, h.cfg.Session.Secure, true)
}
