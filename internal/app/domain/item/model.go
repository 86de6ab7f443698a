package item

import (
	"time"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
)

// Type identifies what kind of artifact an item is (the recipe output).
type Type uint32

// Item is a unique crafted artifact. IDs are assigned by the item ledger and
// never reused.
type Item struct {
	ID        uint64          `json:"id"`
	Type      Type            `json:"type"`
	Owner     address.Address `json:"owner"`
	CreatedAt time.Time       `json:"created_at"`
}
