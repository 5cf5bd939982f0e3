package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"nexus-care/internal/models"

	"gorm.io/gorm"
)

const maxComplaintTitle = 100

// ComplaintView is a listed complaint together with its owner's username.
type ComplaintView struct {
	ID          uint                   `json:"id"`
	UserID      uint                   `json:"user_id"`
	Username    string                 `json:"username"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Status      models.ComplaintStatus `json:"status"`
	IsDeleted   bool                   `json:"is_deleted"`
	CreatedAt   time.Time              `json:"created_at"`
}

type ComplaintService struct {
	db    *gorm.DB
	audit AuditRecorder
}

func NewComplaintService(db *gorm.DB, audit AuditRecorder) *ComplaintService {
	return &ComplaintService{db: db, audit: audit}
}

// Create files a Pending complaint owned by requester.
func (s *ComplaintService) Create(ctx context.Context, requester *Identity, title, description string) (*models.Complaint, error) {
	if requester == nil {
		return nil, ErrUnauthenticated
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxComplaintTitle {
		return nil, fmt.Errorf("%w: title must be at most %d characters", ErrValidation, maxComplaintTitle)
	}

	complaint := &models.Complaint{
		UserID:      requester.UserID,
		Title:       title,
		Description: description,
		Status:      models.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(complaint).Error; err != nil {
		return nil, err
	}

	s.audit.Record(ctx, requester.UserID, "Created Complaint")
	return complaint, nil
}

// List returns visible complaints, newest first. Admins see every
// non-deleted complaint, everyone else only their own, anonymous callers
// nothing.
func (s *ComplaintService) List(ctx context.Context, requester *Identity) ([]ComplaintView, error) {
	views := []ComplaintView{}
	if requester == nil {
		return views, nil
	}

	query := s.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Select("complaints.id, complaints.user_id, users.username, complaints.title, " +
			"complaints.description, complaints.status, complaints.is_deleted, complaints.created_at").
		Joins("JOIN users ON users.id = complaints.user_id").
		Where("complaints.is_deleted = ?", false)

	if !requester.IsAdmin() {
		query = query.Where("complaints.user_id = ?", requester.UserID)
	}

	if err := query.Order("complaints.created_at DESC, complaints.id DESC").Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

// SoftDelete hides a complaint from every listing. Admin only.
func (s *ComplaintService) SoftDelete(ctx context.Context, id uint, requester *Identity) error {
	if !requester.IsAdmin() {
		return ErrForbidden
	}

	res := s.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ?", id).
		Update("is_deleted", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrComplaintNotFound
	}

	s.audit.Record(ctx, requester.UserID, fmt.Sprintf("Deleted Complaint %d", id))
	return nil
}

// SetStatus moves a visible complaint to status. Admin only.
func (s *ComplaintService) SetStatus(ctx context.Context, id uint, status models.ComplaintStatus, requester *Identity) error {
	if !requester.IsAdmin() {
		return ErrForbidden
	}
	if !status.Valid() {
		return fmt.Errorf("%w: status must be one of Pending, Resolved, Dismissed", ErrValidation)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrComplaintNotFound
	}

	s.audit.Record(ctx, requester.UserID, fmt.Sprintf("Updated Complaint %d to %s", id, status))
	return nil
}
