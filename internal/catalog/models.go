package catalog

import "time"

// Item status lifecycle: available -> reserved -> {sold, available}.
// Transitions happen through order placement/cancellation or a direct
// edit by the owner.
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
)

func ValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusReserved || s == StatusSold
}

type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Size        string    `json:"size"`
	Condition   string    `json:"condition"`
	Category    string    `json:"category"`
	PhotoURL    string    `json:"photo_url"`
	Status      string    `json:"status"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows a catalog listing. Zero values mean "not set".
type Filter struct {
	Search        string
	MinPriceCents int64
	MaxPriceCents int64
	Size          string
	Condition     string
	Status        string // defaults to "available" in List
	Page          int
	Limit         int
}

type Page struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Pages int    `json:"pages"`
}
