package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

// StaffStore reads the enrolled staff roster.
type StaffStore interface {
	ListStaff(ctx context.Context) ([]models.Staff, error)
}

type StaffHandler struct {
	db StaffStore
}

func NewStaffHandler(db StaffStore) *StaffHandler {
	return &StaffHandler{db: db}
}

// List handles GET /staff.
func (h *StaffHandler) List(c *gin.Context) {
	staff, err := h.db.ListStaff(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]dto.StaffRow, 0, len(staff))
	for _, s := range staff {
		rows = append(rows, dto.StaffRow{
			UserID:   s.UserID,
			Name:     s.Name,
			Enrolled: s.Enrolled,
		})
	}
	c.JSON(http.StatusOK, gin.H{"staff": rows, "total": len(rows)})
}
