package models

// Decision statuses for a pending record. The ledger stores the status text
// verbatim, so rejected decisions stay visible in the audit history.
const (
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// PendingRecord is an accepted-but-unreviewed sighting. It lives in the
// validation table until a reviewer approves or rejects it; the decision
// removes it and writes an AttendanceRecord in the same transaction.
type PendingRecord struct {
	ID          int64  `json:"id" db:"id"`
	UserID      string `json:"user_id" db:"user_id"`
	Name        string `json:"name" db:"name"`
	Date        string `json:"date" db:"date"`
	Time        string `json:"time" db:"time"`
	SnapshotKey string `json:"snapshot_key,omitempty" db:"snapshot_key"`
}

// AttendanceRecord is one row of the append-only attendance ledger.
type AttendanceRecord struct {
	UserID        string `json:"user_id" db:"user_id"`
	Name          string `json:"name" db:"name"`
	Date          string `json:"date" db:"date"`
	Time          string `json:"time" db:"time"`
	Status        string `json:"status" db:"status"`
	ValidatedTime string `json:"validated_time" db:"validated_time"`
	SnapshotKey   string `json:"snapshot_key,omitempty" db:"snapshot_key"`
}

// ValidationEvent is the message published on every pending-set mutation.
// Payload is informational only; observers re-fetch the pending list.
type ValidationEvent struct {
	Message string `json:"message"`
}
