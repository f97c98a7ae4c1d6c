package wishlist

import (
	"time"

	"github.com/wearagain/thriftmarket/internal/catalog"
)

type Wishlist struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Name      string         `json:"name"`
	IsPublic  bool           `json:"is_public"`
	Items     []catalog.Item `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
}
