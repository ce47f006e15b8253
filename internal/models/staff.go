package models

// Staff is one known identity. The reference embedding is stored alongside
// the row and set once at enrollment; a staff member without one can never
// be matched. Enrolled reflects whether that embedding is present.
type Staff struct {
	UserID   string `json:"user_id" db:"user_id"`
	Name     string `json:"name" db:"name"`
	Enrolled bool   `json:"enrolled" db:"-"`
}
