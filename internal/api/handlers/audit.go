package handlers

import (
	"strconv"

	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuditHandler struct {
	audit *services.AuditService
	log   *zap.Logger
}

func NewAuditHandler(audit *services.AuditService, log *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: log.Named("audit_handler")}
}

// GetAuditLogs returns the newest audit entries
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.audit.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.log, "list audit logs", err)
		return
	}

	c.JSON(200, gin.H{"audit_logs": logs})
}
