/**
 * @description
 * Profile is the balance-carrying user record. The external identity provider
 * owns authentication; this service keys profiles by the provider's subject id
 * and only consumes identity + role from it.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the platform role recorded against a profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Profile represents a user account row in the `profiles` table.
// Balance is mutated only by deal funding, settlement, withdrawal approval,
// and explicit admin adjustment.
type Profile struct {
	ID                uuid.UUID `json:"id"`
	AuthUserID        string    `json:"-"`
	Email             string    `json:"email"`
	FullName          string    `json:"full_name"`
	Role              Role      `json:"role"`
	Balance           int64     `json:"balance"` // in kobo, never negative
	BankName          *string   `json:"bank_name,omitempty"`
	BankAccountNumber *string   `json:"bank_account_number,omitempty"`
	BankAccountName   *string   `json:"bank_account_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SetBankDetailsRequest is the DTO for the one-time bank details write.
type SetBankDetailsRequest struct {
	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	BankAccountName   string `json:"bank_account_name"`
}

// AdminBalanceAdjustmentRequest is the DTO for the admin manual override.
// Amount may be negative; the ledger still refuses to take a balance below zero.
type AdminBalanceAdjustmentRequest struct {
	Amount int64  `json:"amount"` // in kobo
	Reason string `json:"reason"`
}
