package domain

type UsagePoint struct {
	Day          string `json:"day"`
	ListsCreated int64  `json:"lists_created"`
	ItemsCreated int64  `json:"items_created"`
}

type UsageStats struct {
	Points     []UsagePoint `json:"points"`
	TotalLists int64        `json:"total_lists"`
	TotalItems int64        `json:"total_items"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
