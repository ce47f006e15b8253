package dto

// AttendanceRequest is the body of POST /attendance. Image is a data-URL
// encoded frame captured by the client camera.
type AttendanceRequest struct {
	Image string `json:"image" binding:"required"`
}

// AttendanceResponse reports the outcome of one verification attempt.
// UserID and Name are present when an identity was resolved, including the
// spoof case (the matched identity is shown but nothing is recorded).
type AttendanceResponse struct {
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ValidationRow is one entry of GET /validation.
type ValidationRow struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Date   string `json:"date"`
	Time   string `json:"time"`
}

// ValidateRequest is the body of POST /validate_attendance.
type ValidateRequest struct {
	ID     int64  `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// StatusResponse is the generic {status: ...} body.
type StatusResponse struct {
	Status string `json:"status"`
}

// ReportRow is one entry of GET /report.
type ReportRow struct {
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Status        string `json:"status"`
	ValidatedTime string `json:"validated_time"`
}

// StaffRow is one entry of GET /staff.
type StaffRow struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Enrolled bool   `json:"enrolled"`
}

// WSEvent is a message pushed over the WebSocket channel. Type is
// "validation_update" whenever the pending set changes.
type WSEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}
