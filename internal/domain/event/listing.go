package event

import "time"

// Sort columns accepted by the upcoming listing. Anything else is rejected
// before the query is built.
var SortColumns = map[string]string{
	"date_time":             "date_time",
	"title":                 "title",
	"capacity":              "capacity",
	"current_registrations": "current_registrations",
	"created_at":            "created_at",
}

type ListFilter struct {
	Search      *string
	Location    *string
	MinCapacity *int
	MaxCapacity *int
	DateFrom    *time.Time
	DateTo      *time.Time

	SortBy    string // one of SortColumns, default date_time
	SortOrder string // ASC or DESC

	Page  int // 1-based
	Limit int // 1..100, default 10
}

func (f ListFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.Limit
}

// Page metadata returned next to the items.
type PageInfo struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

func NewPageInfo(page, limit, total int) PageInfo {
	return PageInfo{
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasNext: page*limit < total,
		HasPrev: page > 1,
	}
}
