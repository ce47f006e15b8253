package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

// ReportStore reads the permanent attendance log.
type ReportStore interface {
	ListAttendance(ctx context.Context, userID, date string) ([]models.AttendanceRecord, error)
}

type ReportHandler struct {
	db ReportStore
}

func NewReportHandler(db ReportStore) *ReportHandler {
	return &ReportHandler{db: db}
}

// List handles GET /report: every decided record, optionally narrowed by
// ?user_id= and ?date= (YYYY-MM-DD).
func (h *ReportHandler) List(c *gin.Context) {
	records, err := h.db.ListAttendance(c.Request.Context(), c.Query("user_id"), c.Query("date"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]dto.ReportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, dto.ReportRow{
			UserID:        r.UserID,
			Name:          r.Name,
			Date:          r.Date,
			Time:          r.Time,
			Status:        r.Status,
			ValidatedTime: r.ValidatedTime,
		})
	}
	c.JSON(http.StatusOK, rows)
}
