package handlers

import (
	"strconv"

	"nexus-care/internal/api/middleware"
	"nexus-care/internal/models"
	"nexus-care/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ComplaintHandler struct {
	complaints *services.ComplaintService
	log        *zap.Logger
}

func NewComplaintHandler(complaints *services.ComplaintService, log *zap.Logger) *ComplaintHandler {
	return &ComplaintHandler{
		complaints: complaints,
		log:        log.Named("complaint_handler"),
	}
}

type CreateComplaintRequest struct {
	Title       string `json:"title" binding:"required,max=100"`
	Description string `json:"description"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateComplaint files a complaint for the logged-in user
func (h *ComplaintHandler) CreateComplaint(c *gin.Context) {
	var req CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	complaint, err := h.complaints.Create(c.Request.Context(), middleware.CurrentIdentity(c), req.Title, req.Description)
	if err != nil {
		respondError(c, h.log, "create complaint", err)
		return
	}

	c.JSON(201, gin.H{"message": "Complaint added", "id": complaint.ID})
}

// GetComplaints lists the complaints visible to the caller
func (h *ComplaintHandler) GetComplaints(c *gin.Context) {
	complaints, err := h.complaints.List(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, h.log, "list complaints", err)
		return
	}

	c.JSON(200, complaints)
}

// DeleteComplaint soft-deletes a complaint
func (h *ComplaintHandler) DeleteComplaint(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}

	if err := h.complaints.SoftDelete(c.Request.Context(), id, middleware.CurrentIdentity(c)); err != nil {
		respondError(c, h.log, "delete complaint", err)
		return
	}

	c.JSON(200, gin.H{"message": "Deleted"})
}

// UpdateStatus changes a complaint's status
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	status := models.ComplaintStatus(req.Status)
	if err := h.complaints.SetStatus(c.Request.Context(), id, status, middleware.CurrentIdentity(c)); err != nil {
		respondError(c, h.log, "update status", err)
		return
	}

	c.JSON(200, gin.H{"message": "Status Updated"})
}

func complaintID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid complaint ID"})
		return 0, false
	}
	return uint(id), true
}
