package employees

import "time"

// Employee represents a staff member who can request or hold assets
type Employee struct {
	ID         int64     `json:"id"`
	OrgID      int64     `json:"org_id"`
	NIK        string    `json:"nik"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Position   string    `json:"position"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
