package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/storage"
	"github.com/your-org/attend/pkg/dto"
)

// ValidationStore is the slice of storage the review workflow needs.
type ValidationStore interface {
	ListPending(ctx context.Context) ([]models.PendingRecord, error)
	DecidePending(ctx context.Context, id int64, status string) (*models.AttendanceRecord, error)
	GetPendingSnapshotKey(ctx context.Context, id int64) (string, error)
}

type ValidationHandler struct {
	db        ValidationStore
	snapshots SnapshotStore
	notifier  Notifier
}

func NewValidationHandler(db ValidationStore, snapshots SnapshotStore, notifier Notifier) *ValidationHandler {
	return &ValidationHandler{db: db, snapshots: snapshots, notifier: notifier}
}

// List handles GET /validation: all records awaiting a decision, oldest first.
func (h *ValidationHandler) List(c *gin.Context) {
	records, err := h.db.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]dto.ValidationRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, dto.ValidationRow{
			ID:     r.ID,
			UserID: r.UserID,
			Name:   r.Name,
			Date:   r.Date,
			Time:   r.Time,
		})
	}
	c.JSON(http.StatusOK, rows)
}

// Decide handles POST /validate_attendance: move one pending record to the
// permanent log with the reviewer's verdict.
func (h *ValidationHandler) Decide(c *gin.Context) {
	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != models.StatusApproved && req.Status != models.StatusRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Approved or Rejected"})
		return
	}

	// The decision survives a reviewer disconnect once it reaches storage.
	ctx := context.WithoutCancel(c.Request.Context())

	record, err := h.db.DecidePending(ctx, req.ID, req.Status)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.StatusResponse{Status: "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.DecisionsTotal.WithLabelValues(req.Status).Inc()

	// The pending set shrank, so observers need to re-fetch it.
	if err := h.notifier.PendingChanged(); err != nil {
		slog.Warn("announce pending change", "id", req.ID, "error", err)
	}

	slog.Info("attendance decided", "id", req.ID, "user_id", record.UserID, "status", req.Status)

	c.JSON(http.StatusOK, dto.StatusResponse{
		Status: fmt.Sprintf("Attendance marked as %s for %s", req.Status, record.UserID),
	})
}

// Snapshot handles GET /validation/:id/snapshot: the frame that produced a
// pending record, for reviewers who want to see what the camera saw.
func (h *ValidationHandler) Snapshot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	key, err := h.db.GetPendingSnapshotKey(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if key == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for this record"})
		return
	}

	data, err := h.snapshots.GetObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
