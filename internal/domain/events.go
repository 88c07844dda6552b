/**
 * @description
 * Event payloads published to the notification collaborator over RabbitMQ.
 * Delivery and retry are the consumer's concern; this service fires and forgets.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DealEvent is published on every deal lifecycle change under routing keys
// like "deal.funded" or "deal.disputed" on the escrow events exchange.
type DealEvent struct {
	DealID    uuid.UUID  `json:"deal_id"`
	Status    DealStatus `json:"status"`
	Action    DealAction `json:"action"`
	ActorID   uuid.UUID  `json:"actor_id"`
	BuyerID   *uuid.UUID `json:"buyer_id,omitempty"`
	SellerID  *uuid.UUID `json:"seller_id,omitempty"`
	Amount    int64      `json:"amount"`
	Timestamp time.Time  `json:"timestamp"`
}

// WithdrawalEvent is published under "withdrawal.<status>" routing keys.
type WithdrawalEvent struct {
	WithdrawalID uuid.UUID        `json:"withdrawal_id"`
	UserID       uuid.UUID        `json:"user_id"`
	Status       WithdrawalStatus `json:"status"`
	Amount       int64            `json:"amount"`
	AmountSent   int64            `json:"amount_sent,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// InspectionElapsedEvent is published under "deal.inspection.elapsed" when a
// delivered deal has sat past its inspection window with no buyer action.
// It is a reminder only; the deal does not move on its own.
type InspectionElapsedEvent struct {
	DealID      uuid.UUID `json:"deal_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	DeliveredAt time.Time `json:"delivered_at"`
	Timestamp   time.Time `json:"timestamp"`
}
