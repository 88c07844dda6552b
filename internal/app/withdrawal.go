/**
 * @description
 * Withdrawal workflow: pending -> successful | rejected | cancelled.
 *
 * Nothing is reserved at request time; the balance stays spendable until an
 * admin approves. Approval therefore re-checks the balance under a row lock
 * and debits the gross amount; the recorded amount_sent is net of the platform
 * fee for audit purposes. Rejection and self-cancellation never touch money.
 */

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
	"github.com/escrowpad/escrow-service/internal/store"
)

// RequestWithdrawal opens a pending withdrawal for the caller. The destination
// is bank or crypto, never both; bank fields default from the profile's saved
// bank details when omitted.
func (s *Service) RequestWithdrawal(ctx context.Context, callerID uuid.UUID, req domain.RequestWithdrawalPayload) (*domain.Withdrawal, error) {
	if req.Amount < s.minWithdrawalKobo {
		return nil, fmt.Errorf("%w: amount is below the platform minimum of %d kobo", ErrInvalidInput, s.minWithdrawalKobo)
	}

	caller, err := s.repo.FindProfileByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	// Checked but not reserved; approval re-checks under a row lock.
	if caller.Balance < req.Amount {
		return nil, store.ErrInsufficientFunds
	}

	withdrawal := &domain.Withdrawal{
		ID:       uuid.New(),
		UserID:   caller.ID,
		Amount:   req.Amount,
		Currency: "NGN",
		Status:   domain.WithdrawalStatusPending,
	}

	switch req.DestinationType {
	case domain.DestinationBank:
		if hasValue(req.WalletAddress) || hasValue(req.WalletNetwork) || hasValue(req.AssetType) {
			return nil, fmt.Errorf("%w: bank withdrawals cannot carry crypto destination fields", ErrInvalidInput)
		}
		bankName, accountNo, accountName := req.BankName, req.BankAccountNo, req.BankAccountName
		if !hasValue(bankName) && !hasValue(accountNo) && !hasValue(accountName) {
			bankName, accountNo, accountName = caller.BankName, caller.BankAccountNumber, caller.BankAccountName
		}
		if !hasValue(bankName) || !hasValue(accountNo) || !hasValue(accountName) {
			return nil, fmt.Errorf("%w: bank destination requires bank name, account number and account name", ErrInvalidInput)
		}
		withdrawal.DestinationType = domain.DestinationBank
		withdrawal.BankName = bankName
		withdrawal.BankAccountNo = accountNo
		withdrawal.BankAccountName = accountName
	case domain.DestinationCrypto:
		if hasValue(req.BankName) || hasValue(req.BankAccountNo) || hasValue(req.BankAccountName) {
			return nil, fmt.Errorf("%w: crypto withdrawals cannot carry bank destination fields", ErrInvalidInput)
		}
		if !hasValue(req.WalletAddress) || !hasValue(req.WalletNetwork) || !hasValue(req.AssetType) {
			return nil, fmt.Errorf("%w: crypto destination requires wallet address, network and asset type", ErrInvalidInput)
		}
		withdrawal.DestinationType = domain.DestinationCrypto
		withdrawal.WalletAddress = req.WalletAddress
		withdrawal.WalletNetwork = req.WalletNetwork
		withdrawal.AssetType = req.AssetType
	default:
		return nil, fmt.Errorf("%w: destination_type must be \"bank\" or \"crypto\"", ErrInvalidInput)
	}

	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}
	s.publishWithdrawalEvent(ctx, withdrawal)
	return withdrawal, nil
}

// ApproveWithdrawal settles a pending withdrawal. The gross amount is debited
// from the requester; the fee and net amount_sent are recorded for audit.
func (s *Service) ApproveWithdrawal(ctx context.Context, adminID, withdrawalID uuid.UUID, req domain.ApproveWithdrawalPayload) (*domain.Withdrawal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if existing.Status != domain.WithdrawalStatusPending {
		return nil, store.ErrInvalidWithdrawalState
	}

	fee := computeFee(existing.Amount, s.feeBps)
	amountSent := existing.Amount - fee

	var proof *string
	if strings.TrimSpace(req.ProofOfPayment) != "" {
		trimmed := strings.TrimSpace(req.ProofOfPayment)
		proof = &trimmed
	}

	approved, err := s.repo.ApproveWithdrawalAtomic(ctx, withdrawalID, adminID, fee, amountSent, proof)
	if err != nil {
		return nil, err
	}
	s.publishWithdrawalEvent(ctx, approved)
	return approved, nil
}

// RejectWithdrawal closes a pending withdrawal with a mandatory reason.
func (s *Service) RejectWithdrawal(ctx context.Context, adminID, withdrawalID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}
	rejected, err := s.repo.RejectWithdrawal(ctx, withdrawalID, adminID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	s.publishWithdrawalEvent(ctx, rejected)
	return rejected, nil
}

// CancelWithdrawal lets a user withdraw their own pending request.
func (s *Service) CancelWithdrawal(ctx context.Context, callerID, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	cancelled, err := s.repo.CancelWithdrawal(ctx, withdrawalID, callerID)
	if err != nil {
		return nil, err
	}
	s.publishWithdrawalEvent(ctx, cancelled)
	return cancelled, nil
}

// ListWithdrawalsForUser returns the caller's own withdrawal history.
func (s *Service) ListWithdrawalsForUser(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]domain.Withdrawal, error) {
	return s.repo.ListWithdrawalsForUser(ctx, callerID, normalizeLimit(limit), offset)
}

// ListPendingWithdrawals is the admin approval queue.
func (s *Service) ListPendingWithdrawals(ctx context.Context, adminID uuid.UUID, limit, offset int) ([]domain.Withdrawal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListPendingWithdrawals(ctx, normalizeLimit(limit), offset)
}

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
