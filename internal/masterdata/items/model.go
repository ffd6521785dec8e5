package items

import "time"

// Item represents a stock-keeping unit
type Item struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	MinStock  int64     `json:"min_stock"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
