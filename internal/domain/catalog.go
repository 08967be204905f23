/**
 * @description
 * Read-side models for the identity and catalog collaborators. The workflow
 * only ever reads these: members for ownership and queue classification,
 * combos for price snapshots and composition, stock entries for debits.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is the slice of the identity collaborator's record this service
// needs: contact data for notifications and the type used to classify the
// pickup queue.
type Member struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone,omitempty"`
	MemberType string    `json:"member_type"` // regular, adulto_mayor, discapacitado
	Active     bool      `json:"active"`
}

// Combo is a fixed bundle of products sold as one purchasable unit.
type Combo struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
	Available bool            `json:"available"`
}

// ComboItem is one product line of a combo with its fulfillment quantity.
type ComboItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// StockEntry is the current on-hand quantity for one product. Quantity never
// goes negative; fulfillment debits clamp at zero.
type StockEntry struct {
	ProductID        uuid.UUID  `json:"product_id"`
	Quantity         int        `json:"quantity"`
	MinimumThreshold int        `json:"minimum_threshold"`
	LastInboundAt    *time.Time `json:"last_inbound_at,omitempty"`
	LastOutboundAt   *time.Time `json:"last_outbound_at,omitempty"`
}

// BelowThreshold reports whether the entry is under its replenishment mark.
func (s StockEntry) BelowThreshold() bool {
	return s.Quantity < s.MinimumThreshold
}
