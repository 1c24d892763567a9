// Package warehouse owns the inventory records consulted by the challan
// pipeline. Stock is exposed read-only to the rest of the system; the only
// writers are the warehouse endpoints themselves.
package warehouse

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Item is one inventory record, keyed by (productName, category, level).
type Item struct {
	ID           int64     `json:"id" db:"id"`
	ProductName  string    `json:"productName" db:"product_name"`
	Category     string    `json:"category" db:"category"`
	Level        string    `json:"level" db:"level"`
	CurrentStock int64     `json:"currentStock" db:"current_stock"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// NormalizeKey canonicalises a key component before storage or lookup:
// Unicode NFC plus trimmed outer whitespace. Matching stays case-sensitive;
// normalisation only removes encoding-level duplicates, it is not fuzzy
// matching.
func NormalizeKey(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Normalize returns the item with canonical key components.
func (i Item) Normalize() Item {
	i.ProductName = NormalizeKey(i.ProductName)
	i.Category = NormalizeKey(i.Category)
	i.Level = NormalizeKey(i.Level)
	return i
}

// UpsertItemRequest creates or replaces an inventory record.
type UpsertItemRequest struct {
	ProductName  string `json:"productName" validate:"required"`
	Category     string `json:"category"`
	Level        string `json:"level"`
	CurrentStock int64  `json:"currentStock" validate:"gte=0"`
}

// AdjustStockRequest moves stock by a signed delta.
type AdjustStockRequest struct {
	Delta int64  `json:"delta" validate:"required"`
	Note  string `json:"note"`
}

// ListItemsRequest filters the inventory list.
type ListItemsRequest struct {
	Category *string
	Search   *string
	Limit    int
	Offset   int
}
