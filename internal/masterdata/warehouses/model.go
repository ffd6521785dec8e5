package warehouses

// Warehouse represents a storage location
type Warehouse struct {
	ID      int64  `json:"id"`
	OrgID   int64  `json:"org_id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address"`
}
