package services

import (
	"context"
	"fmt"

	"nexus-care/internal/metrics"
	"nexus-care/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditRecorder appends security-relevant actions to the audit trail.
// Record has no error return: a failed write must never affect the
// operation that triggered it.
type AuditRecorder interface {
	Record(ctx context.Context, userID uint, action string)
}

const defaultAuditListLimit = 100

type AuditService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAuditService(db *gorm.DB, log *zap.Logger) *AuditService {
	return &AuditService{db: db, log: log.Named("audit")}
}

// Record writes one audit_logs row. Errors and panics are logged and dropped.
func (s *AuditService) Record(ctx context.Context, userID uint, action string) {
	defer func() {
		if r := recover(); r != nil {
			s.fail(userID, action, fmt.Errorf("panic: %v", r))
		}
	}()

	entry := &models.AuditLog{UserID: userID, Action: action}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.fail(userID, action, err)
		return
	}
	metrics.AuditRecordsTotal.WithLabelValues("success").Inc()
}

func (s *AuditService) fail(userID uint, action string, err error) {
	metrics.AuditRecordsTotal.WithLabelValues("failure").Inc()
	s.log.Error("audit log error",
		zap.Uint("user_id", userID),
		zap.String("action", action),
		zap.Error(err),
	)
}

// List returns the newest audit entries first.
func (s *AuditService) List(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditListLimit
	}

	logs := []models.AuditLog{}
	if err := s.db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
