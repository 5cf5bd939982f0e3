package routes

import (
	"nexus-care/internal/api/handlers"
	"nexus-care/internal/api/middleware"
	"nexus-care/internal/config"
	"nexus-care/internal/metrics"
	"nexus-care/internal/models"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles what the handlers delegate to.
type Services struct {
	Audit      *services.AuditService
	Auth       *services.AuthService
	Sessions   *services.SessionManager
	Complaints *services.ComplaintService
}

// NewServices wires the service layer against one database and session store.
func NewServices(cfg *config.Config, db *gorm.DB, store services.SessionStore, log *zap.Logger) *Services {
	audit := services.NewAuditService(db, log)
	auth := services.NewAuthService(cfg, db, audit, log)

	return &Services{
		Audit:      audit,
		Auth:       auth,
		Sessions:   services.NewSessionManager(cfg, auth, store, audit, log),
		Complaints: services.NewComplaintService(db, audit),
	}
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, svc *Services, log *zap.Logger) {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Sessions, cfg, log)
	complaintHandler := handlers.NewComplaintHandler(svc.Complaints, log)
	auditHandler := handlers.NewAuditHandler(svc.Audit, log)

	// Middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorHandler(log))
	r.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	r.Use(metrics.PrometheusMiddleware())
	r.Use(middleware.LoadSession(svc.Sessions, cfg.Session.CookieName))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "NexusCare API is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)
	r.GET("/check-session", authHandler.CheckSession)
	r.POST("/reset-password", authHandler.ResetPassword)

	// Complaint routes
	complaints := r.Group("/complaints")
	{
		complaints.GET("", complaintHandler.GetComplaints)
		complaints.POST("", middleware.RequireAuthenticated(), complaintHandler.CreateComplaint)
		complaints.DELETE("/:id", middleware.RequireRole(models.RoleAdmin), complaintHandler.DeleteComplaint)
		complaints.PUT("/:id/status", middleware.RequireRole(models.RoleAdmin), complaintHandler.UpdateStatus)
	}

	r.GET("/audit-logs", middleware.RequireRole(models.RoleAdmin), auditHandler.GetAuditLogs)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Endpoint not found"})
	})
}
