package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
	"github.com/escrowpad/escrow-service/internal/store"
)

type withdrawalRepoStub struct {
	store.Repository

	profiles   map[uuid.UUID]*domain.Profile
	withdrawal *domain.Withdrawal

	created *domain.Withdrawal

	approveCalled bool
	approvedFee   int64
	approvedSent  int64
	approvedProof *string

	rejectCalled bool
	rejectReason string
}

func (s *withdrawalRepoStub) FindProfileByID(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	if p, ok := s.profiles[profileID]; ok {
		return p, nil
	}
	return nil, store.ErrProfileNotFound
}

func (s *withdrawalRepoStub) CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error {
	if s.created != nil {
		return store.ErrDuplicatePendingWithdrawal
	}
	s.created = withdrawal
	return nil
}

func (s *withdrawalRepoStub) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	if s.withdrawal == nil || s.withdrawal.ID != withdrawalID {
		return nil, store.ErrWithdrawalNotFound
	}
	return s.withdrawal, nil
}

func (s *withdrawalRepoStub) ApproveWithdrawalAtomic(ctx context.Context, withdrawalID, adminID uuid.UUID, fee, amountSent int64, proofOfPayment *string) (*domain.Withdrawal, error) {
	s.approveCalled = true
	s.approvedFee = fee
	s.approvedSent = amountSent
	s.approvedProof = proofOfPayment
	approved := *s.withdrawal
	approved.Status = domain.WithdrawalStatusSuccessful
	approved.WithdrawalFee = fee
	approved.AmountSent = amountSent
	approved.ProcessedBy = &adminID
	return &approved, nil
}

func (s *withdrawalRepoStub) RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, reason string) (*domain.Withdrawal, error) {
	s.rejectCalled = true
	s.rejectReason = reason
	rejected := *s.withdrawal
	rejected.Status = domain.WithdrawalStatusRejected
	rejected.RejectionReason = &reason
	return &rejected, nil
}

func (s *withdrawalRepoStub) CancelWithdrawal(ctx context.Context, withdrawalID, userID uuid.UUID) (*domain.Withdrawal, error) {
	if s.withdrawal == nil || s.withdrawal.UserID != userID {
		return nil, store.ErrWithdrawalNotFound
	}
	cancelled := *s.withdrawal
	cancelled.Status = domain.WithdrawalStatusCancelled
	return &cancelled, nil
}

func strPtr(v string) *string { return &v }

func newWithdrawalFixture() (*withdrawalRepoStub, *Service, *domain.Profile, *domain.Profile) {
	user := &domain.Profile{
		ID:                uuid.New(),
		Email:             "user@example.com",
		Role:              domain.RoleUser,
		Balance:           600000,
		BankName:          strPtr("GTBank"),
		BankAccountNumber: strPtr("0123456789"),
		BankAccountName:   strPtr("Ada Obi"),
	}
	admin := &domain.Profile{ID: uuid.New(), Email: "admin@example.com", Role: domain.RoleAdmin}
	repo := &withdrawalRepoStub{
		profiles: map[uuid.UUID]*domain.Profile{user.ID: user, admin.ID: admin},
	}
	service := NewService(repo, nil, "escrow.events", 250, 100000)
	return repo, service, user, admin
}

func TestRequestWithdrawalBelowMinimum(t *testing.T) {
	_, service, user, _ := newWithdrawalFixture()

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          99999,
		DestinationType: domain.DestinationBank,
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput below minimum, got %v", err)
	}
}

func TestRequestWithdrawalChecksButDoesNotReserveBalance(t *testing.T) {
	repo, service, user, _ := newWithdrawalFixture()

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          700000,
		DestinationType: domain.DestinationBank,
	}); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds above balance, got %v", err)
	}

	w, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          500000,
		DestinationType: domain.DestinationBank,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if w.Status != domain.WithdrawalStatusPending {
		t.Fatalf("expected pending, got %q", w.Status)
	}
	// The balance stays untouched until an admin approves.
	if user.Balance != 600000 {
		t.Fatalf("request must not debit the balance, got %d", user.Balance)
	}
	if repo.created == nil {
		t.Fatal("expected withdrawal to be persisted")
	}
}

func TestRequestWithdrawalDefaultsBankDetailsFromProfile(t *testing.T) {
	_, service, user, _ := newWithdrawalFixture()

	w, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          200000,
		DestinationType: domain.DestinationBank,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if w.BankName == nil || *w.BankName != "GTBank" {
		t.Fatalf("expected bank name defaulted from profile, got %v", w.BankName)
	}
	if w.BankAccountNo == nil || *w.BankAccountNo != "0123456789" {
		t.Fatalf("expected account number defaulted from profile, got %v", w.BankAccountNo)
	}
}

func TestRequestWithdrawalDestinationIsExclusive(t *testing.T) {
	_, service, user, _ := newWithdrawalFixture()

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          200000,
		DestinationType: domain.DestinationBank,
		WalletAddress:   strPtr("0xabc"),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bank request with wallet fields, got %v", err)
	}

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          200000,
		DestinationType: domain.DestinationCrypto,
		BankName:        strPtr("GTBank"),
		WalletAddress:   strPtr("0xabc"),
		WalletNetwork:   strPtr("tron"),
		AssetType:       strPtr("usdt"),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for crypto request with bank fields, got %v", err)
	}

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          200000,
		DestinationType: domain.DestinationCrypto,
		WalletAddress:   strPtr("0xabc"),
		WalletNetwork:   strPtr("tron"),
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for incomplete crypto destination, got %v", err)
	}

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          200000,
		DestinationType: "cash",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown destination type, got %v", err)
	}
}

func TestRequestWithdrawalDuplicatePendingSurfaces(t *testing.T) {
	repo, service, user, _ := newWithdrawalFixture()
	repo.created = &domain.Withdrawal{ID: uuid.New()}

	if _, err := service.RequestWithdrawal(context.Background(), user.ID, domain.RequestWithdrawalPayload{
		Amount:          200000,
		DestinationType: domain.DestinationBank,
	}); !errors.Is(err, store.ErrDuplicatePendingWithdrawal) {
		t.Fatalf("expected ErrDuplicatePendingWithdrawal, got %v", err)
	}
}

func TestApproveWithdrawalComputesFeeAndNetAmount(t *testing.T) {
	repo, service, user, admin := newWithdrawalFixture()
	repo.withdrawal = &domain.Withdrawal{
		ID:     uuid.New(),
		UserID: user.ID,
		Amount: 500000,
		Status: domain.WithdrawalStatusPending,
	}

	approved, err := service.ApproveWithdrawal(context.Background(), admin.ID, repo.withdrawal.ID, domain.ApproveWithdrawalPayload{
		ProofOfPayment: "TRX-20260901-001",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if approved.Status != domain.WithdrawalStatusSuccessful {
		t.Fatalf("expected successful, got %q", approved.Status)
	}
	if repo.approvedFee != 12500 {
		t.Fatalf("expected fee 12500 on 500000 at 250bps, got %d", repo.approvedFee)
	}
	if repo.approvedSent != 487500 {
		t.Fatalf("expected amount_sent 487500, got %d", repo.approvedSent)
	}
	if repo.approvedProof == nil || *repo.approvedProof != "TRX-20260901-001" {
		t.Fatalf("expected proof of payment recorded, got %v", repo.approvedProof)
	}
}

func TestApproveWithdrawalRejectsNonPendingAndNonAdmin(t *testing.T) {
	repo, service, user, admin := newWithdrawalFixture()
	repo.withdrawal = &domain.Withdrawal{
		ID:     uuid.New(),
		UserID: user.ID,
		Amount: 500000,
		Status: domain.WithdrawalStatusRejected,
	}

	if _, err := service.ApproveWithdrawal(context.Background(), admin.ID, repo.withdrawal.ID, domain.ApproveWithdrawalPayload{}); !errors.Is(err, store.ErrInvalidWithdrawalState) {
		t.Fatalf("expected ErrInvalidWithdrawalState, got %v", err)
	}
	if repo.approveCalled {
		t.Fatal("approval must not run on a non-pending withdrawal")
	}

	repo.withdrawal.Status = domain.WithdrawalStatusPending
	if _, err := service.ApproveWithdrawal(context.Background(), user.ID, repo.withdrawal.ID, domain.ApproveWithdrawalPayload{}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
}

func TestRejectWithdrawalRequiresReason(t *testing.T) {
	repo, service, user, admin := newWithdrawalFixture()
	repo.withdrawal = &domain.Withdrawal{
		ID:     uuid.New(),
		UserID: user.ID,
		Amount: 500000,
		Status: domain.WithdrawalStatusPending,
	}

	if _, err := service.RejectWithdrawal(context.Background(), admin.ID, repo.withdrawal.ID, "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank reason, got %v", err)
	}

	rejected, err := service.RejectWithdrawal(context.Background(), admin.ID, repo.withdrawal.ID, "account name mismatch")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rejected.Status != domain.WithdrawalStatusRejected {
		t.Fatalf("expected rejected, got %q", rejected.Status)
	}
	if repo.rejectReason != "account name mismatch" {
		t.Fatalf("expected reason recorded, got %q", repo.rejectReason)
	}
}

func TestCancelWithdrawalScopedToOwner(t *testing.T) {
	repo, service, user, _ := newWithdrawalFixture()
	repo.withdrawal = &domain.Withdrawal{
		ID:     uuid.New(),
		UserID: user.ID,
		Amount: 500000,
		Status: domain.WithdrawalStatusPending,
	}

	if _, err := service.CancelWithdrawal(context.Background(), uuid.New(), repo.withdrawal.ID); !errors.Is(err, store.ErrWithdrawalNotFound) {
		t.Fatalf("expected not-found for a different user, got %v", err)
	}

	cancelled, err := service.CancelWithdrawal(context.Background(), user.ID, repo.withdrawal.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cancelled.Status != domain.WithdrawalStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
}
