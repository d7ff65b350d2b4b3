package domain

type VendorTotal struct {
	Vendor string  `json:"vendor"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type AdminReport struct {
	TotalCount int64         `json:"total_count"`
	Vendors    []VendorTotal `json:"totals"`
}
