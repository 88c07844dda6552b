/**
 * @description
 * This file defines the `Repository` interface, the contract for all ledger
 * store access required by the escrow service. The interface decouples the
 * state machine logic from PostgreSQL and lets tests substitute stubs.
 *
 * @notes
 * - Methods suffixed `Atomic` perform their whole read-check-write sequence
 *   inside one database transaction; callers rely on all-or-nothing behavior.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
)

var (
	ErrProfileNotFound            = errors.New("profile not found")
	ErrDealNotFound               = errors.New("deal not found")
	ErrWithdrawalNotFound         = errors.New("withdrawal not found")
	ErrInsufficientFunds          = errors.New("insufficient funds")
	ErrInvalidDealState           = errors.New("deal is not in a valid state for this transition")
	ErrInvalidWithdrawalState     = errors.New("withdrawal is not in a valid state for this transition")
	ErrDuplicatePendingWithdrawal = errors.New("a pending withdrawal already exists for this user")
	ErrPartySlotTaken             = errors.New("deal party slot is already filled")
	ErrBankDetailsAlreadySet      = errors.New("bank details are immutable once set")
)

// SettlementParams describes a terminal money movement applied atomically with
// the closing status write. Zero credits are skipped but the status still moves.
type SettlementParams struct {
	FromStatuses []domain.DealStatus
	ToStatus     domain.DealStatus
	BuyerCredit  int64
	SellerCredit int64
	PlatformFee  int64
	Resolution   *string
}

// Repository defines the set of methods for interacting with the ledger store.
type Repository interface {
	// Profile methods
	FindProfileIDByAuthUserID(ctx context.Context, authUserID string) (uuid.UUID, error)
	FindProfileByID(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	DeleteProfile(ctx context.Context, profileID uuid.UUID) error
	ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error)
	SetBankDetails(ctx context.Context, profileID uuid.UUID, bankName, accountNumber, accountName string) error
	CreditBalance(ctx context.Context, profileID uuid.UUID, amount int64) error
	DebitBalance(ctx context.Context, profileID uuid.UUID, amount int64) error
	AdjustBalance(ctx context.Context, profileID uuid.UUID, delta int64) (int64, error)

	// Deal methods
	CreateDeal(ctx context.Context, deal *domain.Deal) error
	FindDealByID(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error)
	FindDealByInviteCode(ctx context.Context, inviteCode string) (*domain.Deal, error)
	ListDealsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Deal, error)
	ListDeals(ctx context.Context, status *domain.DealStatus, limit, offset int) ([]domain.Deal, error)
	BindDealParty(ctx context.Context, dealID uuid.UUID, userID uuid.UUID, asBuyer bool, from, to domain.DealStatus) (*domain.Deal, error)
	FundDealAtomic(ctx context.Context, dealID, buyerID uuid.UUID, amount int64) (*domain.Deal, error)
	MarkDealDelivered(ctx context.Context, dealID uuid.UUID) (*domain.Deal, error)
	OpenDealDispute(ctx context.Context, dealID, raisedBy uuid.UUID, reason string) (*domain.Deal, error)
	CancelDeal(ctx context.Context, dealID uuid.UUID, from []domain.DealStatus) (*domain.Deal, error)
	SettleDealAtomic(ctx context.Context, dealID uuid.UUID, params SettlementParams) (*domain.Deal, error)
	FindInspectionElapsedDeals(ctx context.Context) ([]domain.Deal, error)
	MarkInspectionNotified(ctx context.Context, dealID uuid.UUID) error

	// Withdrawal methods
	CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
	ListWithdrawalsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Withdrawal, error)
	ListPendingWithdrawals(ctx context.Context, limit, offset int) ([]domain.Withdrawal, error)
	ApproveWithdrawalAtomic(ctx context.Context, withdrawalID, adminID uuid.UUID, fee, amountSent int64, proofOfPayment *string) (*domain.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, reason string) (*domain.Withdrawal, error)
	CancelWithdrawal(ctx context.Context, withdrawalID, userID uuid.UUID) (*domain.Withdrawal, error)
}
