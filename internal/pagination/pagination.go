// Package pagination turns loosely typed page/limit/sort options into a
// canonical offset, limit and ordering.
package pagination

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage      = 1
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultSortBy    = "createdAt"
	DefaultSortOrder = "desc"
)

// Options is the raw option bag. Each field may be nil, a string or a number.
type Options struct {
	Page      any
	Limit     any
	SortBy    any
	SortOrder any
}

// Params is the normalized form consumed by repositories.
type Params struct {
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Skip      int    `json:"skip"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// Normalize never fails: unusable values fall back to their defaults.
func Normalize(opts Options) Params {
	page := positiveInt(opts.Page, DefaultPage)
	limit := positiveInt(opts.Limit, DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}

	sortBy := strings.TrimSpace(stringValue(opts.SortBy))
	if sortBy == "" {
		sortBy = DefaultSortBy
	}

	sortOrder := strings.ToLower(strings.TrimSpace(stringValue(opts.SortOrder)))
	if sortOrder != "asc" && sortOrder != "desc" {
		sortOrder = DefaultSortOrder
	}

	return Params{
		Page:      page,
		Limit:     limit,
		Skip:      (page - 1) * limit,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}
}

// TotalPages is ceil(total/limit); zero when there is nothing to page.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func positiveInt(v any, def int) int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int32:
		n = int(t)
	case int64:
		n = int(t)
	case uint:
		n = int(t)
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt32 || t < math.MinInt32 {
			return def
		}
		n = int(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		n = parsed
	default:
		return def
	}
	// Bounded so (page-1)*limit cannot overflow.
	if n < 1 || n > math.MaxInt32 {
		return def
	}
	return n
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
