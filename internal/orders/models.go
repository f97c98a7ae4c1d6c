package orders

import "time"

type Order struct {
	ID         string    `json:"id"`
	BuyerID    string    `json:"buyer_id"`
	Status     Status    `json:"status"`
	TotalCents int64     `json:"total_cents"`
	Items      []Line    `json:"items,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Line is one order position. PriceCents is snapshotted from the item
// at order time and never recomputed, so later price edits cannot change
// a placed order.
type Line struct {
	ItemID     string `json:"item_id"`
	Title      string `json:"title,omitempty"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

// LineInput is what the buyer submits.
type LineInput struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}
