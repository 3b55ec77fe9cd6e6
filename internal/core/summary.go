package core

import "time"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	Amount     Money  `json:"amount"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      time.Month       `json:"month"` // 1-12
	Total      Money            `json:"total"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"byCategory"`
}
