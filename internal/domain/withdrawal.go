/**
 * @description
 * Withdrawal models the secondary state machine: a user's request to move
 * settled balance out of the platform, approved or rejected by an admin.
 *
 * @notes
 * - The balance is NOT reserved at request time; it is re-checked and debited
 *   only when an admin approves. Rejection and cancellation never touch money.
 * - The destination is either a bank account or a crypto wallet, never both.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// WithdrawalStatus is the state alphabet for withdrawals. All non-pending
// states are terminal.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusSuccessful WithdrawalStatus = "successful"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
	WithdrawalStatusCancelled  WithdrawalStatus = "cancelled"
)

// Destination types for a withdrawal payout.
const (
	DestinationBank   = "bank"
	DestinationCrypto = "crypto"
)

// Withdrawal represents a row in the `withdrawals` table.
type Withdrawal struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Amount          int64            `json:"amount"` // in kobo, gross amount debited on approval
	Currency        string           `json:"currency"`
	DestinationType string           `json:"destination_type"`
	BankName        *string          `json:"bank_name,omitempty"`
	BankAccountNo   *string          `json:"bank_account_number,omitempty"`
	BankAccountName *string          `json:"bank_account_name,omitempty"`
	WalletAddress   *string          `json:"wallet_address,omitempty"`
	WalletNetwork   *string          `json:"wallet_network,omitempty"`
	AssetType       *string          `json:"asset_type,omitempty"`
	Status          WithdrawalStatus `json:"status"`
	RejectionReason *string          `json:"rejection_reason,omitempty"`
	ProofOfPayment  *string          `json:"proof_of_payment,omitempty"`
	WithdrawalFee   int64            `json:"withdrawal_fee"` // in kobo
	AmountSent      int64            `json:"amount_sent"`    // in kobo, net of fee, audit only
	ProcessedBy     *uuid.UUID       `json:"processed_by,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// RequestWithdrawalPayload is the DTO for a user withdrawal request.
type RequestWithdrawalPayload struct {
	Amount          int64   `json:"amount"` // in kobo
	DestinationType string  `json:"destination_type"`
	BankName        *string `json:"bank_name,omitempty"`
	BankAccountNo   *string `json:"bank_account_number,omitempty"`
	BankAccountName *string `json:"bank_account_name,omitempty"`
	WalletAddress   *string `json:"wallet_address,omitempty"`
	WalletNetwork   *string `json:"wallet_network,omitempty"`
	AssetType       *string `json:"asset_type,omitempty"`
}

// ApproveWithdrawalPayload carries the admin's proof-of-payment reference.
type ApproveWithdrawalPayload struct {
	ProofOfPayment string `json:"proof_of_payment,omitempty"`
}

// RejectWithdrawalPayload carries the mandatory rejection reason.
type RejectWithdrawalPayload struct {
	Reason string `json:"reason"`
}
