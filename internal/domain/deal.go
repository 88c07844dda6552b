/**
 * @description
 * This file defines the core domain model for escrow deals: the Deal record,
 * its status enum, the explicit transition table, and the Participant variant
 * used for per-request role resolution.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (kobo), which avoids floating-point inaccuracies with financial data.
 * - Every status change in the system must be justified by the transition table
 *   below; the service layer never compares raw status strings ad hoc.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// DealStatus is the state-machine alphabet for a deal.
type DealStatus string

const (
	// DealStatusDraft: buyer created the deal, awaiting the seller to join.
	DealStatusDraft DealStatus = "draft"
	// DealStatusAwaitingBuyer: seller created the deal, awaiting the buyer to join.
	DealStatusAwaitingBuyer DealStatus = "awaiting_buyer"
	// DealStatusAwaitingPayment: both parties joined, awaiting buyer funding.
	DealStatusAwaitingPayment DealStatus = "awaiting_payment"
	// DealStatusInEscrow: funded; the amount is held by the platform.
	DealStatusInEscrow DealStatus = "in_escrow"
	// DealStatusDelivered: seller marked delivered, awaiting buyer confirmation.
	DealStatusDelivered DealStatus = "delivered"
	// DealStatusDisputed: either party escalated; awaits admin resolution.
	DealStatusDisputed DealStatus = "disputed"
	DealStatusCompleted DealStatus = "completed"
	DealStatusCancelled DealStatus = "cancelled"
	DealStatusRefunded  DealStatus = "refunded"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s DealStatus) IsTerminal() bool {
	switch s {
	case DealStatusCompleted, DealStatusCancelled, DealStatusRefunded:
		return true
	}
	return false
}

// DealAction names a transition of the deal state machine.
type DealAction string

const (
	ActionCreate        DealAction = "create"
	ActionJoin          DealAction = "join"
	ActionFund          DealAction = "fund"
	ActionMarkDelivered DealAction = "mark_delivered"
	ActionConfirm       DealAction = "confirm_delivery"
	ActionDispute       DealAction = "open_dispute"
	ActionCancel        DealAction = "cancel"
	ActionResolve       DealAction = "resolve_dispute"
	ActionFinalize      DealAction = "admin_finalize"
	ActionAdminCancel   DealAction = "admin_cancel"
)

// dealTransitions is the single source of truth for legal source states per action.
// Admin finalize releases escrowed money, so it is only legal once funds are held.
var dealTransitions = map[DealAction][]DealStatus{
	ActionJoin:          {DealStatusDraft, DealStatusAwaitingBuyer},
	ActionFund:          {DealStatusAwaitingPayment},
	ActionMarkDelivered: {DealStatusInEscrow},
	ActionConfirm:       {DealStatusDelivered},
	ActionDispute:       {DealStatusInEscrow, DealStatusDelivered},
	ActionCancel:        {DealStatusDraft, DealStatusAwaitingBuyer, DealStatusAwaitingPayment},
	ActionResolve:       {DealStatusDisputed},
	ActionFinalize:      {DealStatusInEscrow, DealStatusDelivered, DealStatusDisputed},
	ActionAdminCancel:   {DealStatusDraft, DealStatusAwaitingBuyer, DealStatusAwaitingPayment, DealStatusInEscrow, DealStatusDelivered, DealStatusDisputed},
}

// CanTransition reports whether action is legal from the given status.
func CanTransition(action DealAction, from DealStatus) bool {
	for _, s := range dealTransitions[action] {
		if s == from {
			return true
		}
	}
	return false
}

// TransitionSources returns the legal source states for an action.
func TransitionSources(action DealAction) []DealStatus {
	return dealTransitions[action]
}

// Participant is the caller's relationship to a deal, resolved once per request.
type Participant int

const (
	ParticipantNone Participant = iota
	ParticipantBuyer
	ParticipantSeller
	ParticipantAdmin
)

// ResolveParticipant classifies a profile against a deal's party bindings.
// Admin wins over party membership so that admin-gated checks stay uniform.
func ResolveParticipant(p *Profile, d *Deal) Participant {
	if p.Role == RoleAdmin {
		return ParticipantAdmin
	}
	if d.BuyerID != nil && *d.BuyerID == p.ID {
		return ParticipantBuyer
	}
	if d.SellerID != nil && *d.SellerID == p.ID {
		return ParticipantSeller
	}
	return ParticipantNone
}

// Deal represents an escrow deal record. It maps directly to the `deals` table.
type Deal struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Amount               int64      `json:"amount"` // in kobo
	Currency             string     `json:"currency"`
	Status               DealStatus `json:"status"`
	InviteCode           string     `json:"invite_code,omitempty"`
	BuyerID              *uuid.UUID `json:"buyer_id,omitempty"`
	SellerID             *uuid.UUID `json:"seller_id,omitempty"`
	CounterpartyEmail    string     `json:"counterparty_email"`
	InspectionPeriodDays int        `json:"inspection_period_days"`
	DisputeReason        *string    `json:"dispute_reason,omitempty"`
	DisputedBy           *uuid.UUID `json:"disputed_by,omitempty"`
	AdminResolution      *string    `json:"admin_resolution,omitempty"`
	PlatformFee          int64      `json:"platform_fee"` // in kobo, recorded at settlement
	InspectionNotified   bool       `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	FundedAt             *time.Time `json:"funded_at,omitempty"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty"`
	DisputedAt           *time.Time `json:"disputed_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// BothPartiesBound reports whether the buyer and seller slots are both filled.
// Once true, a bilateral cancel is rejected in favor of the dispute path.
func (d *Deal) BothPartiesBound() bool {
	return d.BuyerID != nil && d.SellerID != nil
}

// CreateDealRequest is the DTO for incoming deal creation API requests.
type CreateDealRequest struct {
	Title                string `json:"title"`
	Description          string `json:"description"`
	Amount               int64  `json:"amount"` // in kobo
	CreatorRole          string `json:"creator_role"` // "buyer" or "seller"
	CounterpartyEmail    string `json:"counterparty_email"`
	InspectionPeriodDays int    `json:"inspection_period_days"`
}

// JoinDealRequest is the DTO for joining a deal via invite code.
type JoinDealRequest struct {
	InviteCode string `json:"invite_code"`
}

// OpenDisputeRequest carries the reason a participant escalates a deal.
type OpenDisputeRequest struct {
	Reason string `json:"reason"`
}

// Dispute resolution kinds accepted by the admin resolution endpoint.
const (
	ResolutionReleaseToSeller = "release_to_seller"
	ResolutionRefundToBuyer   = "refund_to_buyer"
	ResolutionSplit           = "split"
)

// ResolveDisputeRequest is the DTO for admin dispute adjudication.
type ResolveDisputeRequest struct {
	Resolution      string `json:"resolution"`
	BuyerPercentage int    `json:"buyer_percentage,omitempty"` // only for split, 0-100
	Note            string `json:"note,omitempty"`
}

// DealSettlement captures the balance allocation computed for a settlement,
// used both to apply the credits and for the audit record.
type DealSettlement struct {
	BuyerCredit  int64 // in kobo, refunded portion
	SellerCredit int64 // in kobo, net of fee
	Fee          int64 // in kobo, platform's cut
}
