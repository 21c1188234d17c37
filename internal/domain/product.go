package domain

import "strings"

const (
	DefaultPageSize = 12
	MaxPageSize     = 200
)

// RawItem is one inventory record as returned by the upstream API.
// Field names vary between responses, so it stays an untyped map.
type RawItem map[string]any

// Value returns the field stored under key, treating JSON null as absent.
func (r RawItem) Value(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// FirstVariant returns the first entry of the "variants" list, if any.
func (r RawItem) FirstVariant() RawItem {
	v, ok := r.Value("variants")
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil
	}
	return RawItem(first)
}

// Product is the canonical product shape served to the storefront.
// A nil Stock means the level is unknown and the item counts as available.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	SKU           string  `json:"sku"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	Stock         *int    `json:"stock,omitempty"`
	ImageURL      *string `json:"image_url,omitempty"`
	ItemGroupName *string `json:"item_group_name,omitempty"`
}

// ProductDetail carries a single upstream item alongside its canonical form
type ProductDetail struct {
	Raw     RawItem
	Product Product
}

// RawPage is the item list and total count extracted from an upstream envelope
type RawPage struct {
	Items      []RawItem
	TotalCount int
}

// CSVExport is an upstream CSV response passed through unmodified
type CSVExport struct {
	ContentType string
	Body        []byte
}

// ProductQuery holds the listing parameters accepted by the products endpoint
type ProductQuery struct {
	Page          int
	PageSize      int
	SortDirection string
	SortBy        string
	Q             string
	ChannelID     string
	IsFavourite   string
	CSV           string
}

// Normalize clamps page to at least 1 and pageSize to [1, MaxPageSize].
func (q ProductQuery) Normalize() ProductQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	q.PageSize = ClampPageSize(q.PageSize)
	return q
}

// WantsCSV reports whether the caller asked for the raw CSV export
func (q ProductQuery) WantsCSV() bool {
	v := strings.TrimSpace(q.CSV)
	return v == "true" || v == "1"
}

// ClampPageSize bounds a requested page size to [1, MaxPageSize].
func ClampPageSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
