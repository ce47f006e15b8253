package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/verify"
	"github.com/your-org/attend/internal/vision"
	"github.com/your-org/attend/pkg/dto"
)

// Verifier runs one submitted frame through the verification pipeline.
// Satisfied by *verify.Pipeline.
type Verifier interface {
	Verify(ctx context.Context, imageData []byte) (verify.Result, error)
}

// AttendanceStore is the slice of storage the attendance handler needs.
type AttendanceStore interface {
	GetStaff(ctx context.Context, userID string) (*models.Staff, error)
	InsertPending(ctx context.Context, userID string, at time.Time, snapshotKey string) (int64, error)
}

// SnapshotStore persists and serves audit snapshots.
// Satisfied by *storage.MinIOStore.
type SnapshotStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Notifier announces pending-set changes. Satisfied by *queue.Notifier.
type Notifier interface {
	PendingChanged() error
}

type AttendanceHandler struct {
	verifier  Verifier
	db        AttendanceStore
	snapshots SnapshotStore
	notifier  Notifier
}

func NewAttendanceHandler(verifier Verifier, db AttendanceStore, snapshots SnapshotStore, notifier Notifier) *AttendanceHandler {
	return &AttendanceHandler{verifier: verifier, db: db, snapshots: snapshots, notifier: notifier}
}

// Submit handles POST /attendance: verify the submitted frame and, when
// accepted, create a pending record and announce it.
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req dto.AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: "fail"})
		return
	}

	imageData, err := vision.DecodeDataURL(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: "fail"})
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), imageData)
	if err != nil {
		if errors.Is(err, vision.ErrBadImage) {
			c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: "fail"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch result.Outcome {
	case verify.OutcomeNoFace:
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: "No face detected"})

	case verify.OutcomeNoMatch:
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: "fail"})

	case verify.OutcomeSpoofed:
		c.JSON(http.StatusBadRequest, dto.AttendanceResponse{
			Status: "Spoof detected.. Try to blink",
			UserID: result.UserID,
			Name:   h.staffName(c.Request.Context(), result.UserID),
		})

	case verify.OutcomeAccepted:
		h.accept(c, result.UserID, imageData)

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown verification outcome"})
	}
}

// accept records the sighting. The submission already passed verification,
// so it must not be lost to a client disconnect: the remaining work runs
// under a context detached from request cancellation.
func (h *AttendanceHandler) accept(c *gin.Context, userID string, imageData []byte) {
	ctx := context.WithoutCancel(c.Request.Context())

	// Audit snapshot is best-effort; the sighting is recorded either way.
	snapshotKey := fmt.Sprintf("snapshots/%s/%s.jpg", userID, uuid.New().String())
	if err := h.snapshots.PutObject(ctx, snapshotKey, imageData, "image/jpeg"); err != nil {
		slog.Warn("store audit snapshot", "user_id", userID, "error", err)
		snapshotKey = ""
	}

	id, err := h.db.InsertPending(ctx, userID, time.Now(), snapshotKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.PendingInserted.Inc()

	// Announce only after the record durably exists. Best-effort:
	// observers re-fetch the list, a lost event costs nothing permanent.
	if err := h.notifier.PendingChanged(); err != nil {
		slog.Warn("announce pending change", "id", id, "error", err)
	}

	slog.Info("attendance accepted", "id", id, "user_id", userID)

	c.JSON(http.StatusOK, dto.AttendanceResponse{
		Status: "Attendance Successful",
		UserID: userID,
		Name:   h.staffName(ctx, userID),
	})
}

func (h *AttendanceHandler) staffName(ctx context.Context, userID string) string {
	staff, err := h.db.GetStaff(ctx, userID)
	if err != nil || staff == nil {
		return ""
	}
	return staff.Name
}
