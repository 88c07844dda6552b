package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
	"github.com/escrowpad/escrow-service/internal/store"
)

func newAdminFixture(status domain.DealStatus) (*dealLifecycleRepoStub, *Service, *domain.Profile) {
	repo, service, _, _ := newLifecycleFixture(status)
	admin := &domain.Profile{ID: uuid.New(), Email: "admin@example.com", Role: domain.RoleAdmin}
	repo.profiles[admin.ID] = admin
	return repo, service, admin
}

func TestResolveDisputeReleaseToSeller(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusDisputed)

	resolved, err := service.ResolveDispute(context.Background(), admin.ID, repo.deal.ID, domain.ResolveDisputeRequest{
		Resolution: domain.ResolutionReleaseToSeller,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resolved.Status != domain.DealStatusCompleted {
		t.Fatalf("expected completed, got %q", resolved.Status)
	}
	if repo.settleParams.SellerCredit != 9750 || repo.settleParams.PlatformFee != 250 || repo.settleParams.BuyerCredit != 0 {
		t.Fatalf("unexpected release allocation: %+v", repo.settleParams)
	}
}

func TestResolveDisputeRefundToBuyer(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusDisputed)

	resolved, err := service.ResolveDispute(context.Background(), admin.ID, repo.deal.ID, domain.ResolveDisputeRequest{
		Resolution: domain.ResolutionRefundToBuyer,
		Note:       "seller never shipped",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resolved.Status != domain.DealStatusRefunded {
		t.Fatalf("expected refunded, got %q", resolved.Status)
	}
	if repo.settleParams.BuyerCredit != 10000 || repo.settleParams.SellerCredit != 0 || repo.settleParams.PlatformFee != 0 {
		t.Fatalf("refund must return the full amount fee-free: %+v", repo.settleParams)
	}
	if repo.settleParams.Resolution == nil || *repo.settleParams.Resolution != "refund_to_buyer: seller never shipped" {
		t.Fatalf("expected resolution note to be recorded, got %v", repo.settleParams.Resolution)
	}
}

func TestResolveDisputeSplit(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusDisputed)

	resolved, err := service.ResolveDispute(context.Background(), admin.ID, repo.deal.ID, domain.ResolveDisputeRequest{
		Resolution:      domain.ResolutionSplit,
		BuyerPercentage: 40,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resolved.Status != domain.DealStatusCompleted {
		t.Fatalf("expected completed, got %q", resolved.Status)
	}
	p := repo.settleParams
	if p.BuyerCredit != 4000 {
		t.Fatalf("expected buyer credit 4000, got %d", p.BuyerCredit)
	}
	if sum := p.BuyerCredit + p.SellerCredit + p.PlatformFee; sum != 10000 {
		t.Fatalf("split settlement leaks money: %+v sum=%d", p, sum)
	}
}

func TestResolveDisputeRejectsBadInput(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusDisputed)

	if _, err := service.ResolveDispute(context.Background(), admin.ID, repo.deal.ID, domain.ResolveDisputeRequest{
		Resolution: "keep_everything",
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown resolution, got %v", err)
	}
	if _, err := service.ResolveDispute(context.Background(), admin.ID, repo.deal.ID, domain.ResolveDisputeRequest{
		Resolution:      domain.ResolutionSplit,
		BuyerPercentage: 140,
	}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for out-of-range percentage, got %v", err)
	}
	if repo.settleCalled {
		t.Fatal("no settlement may run on invalid input")
	}
}

func TestResolveDisputeRequiresAdminAndDisputedState(t *testing.T) {
	repo, service, buyer, _ := newLifecycleFixture(domain.DealStatusDisputed)
	if _, err := service.ResolveDispute(context.Background(), buyer.ID, repo.deal.ID, domain.ResolveDisputeRequest{
		Resolution: domain.ResolutionRefundToBuyer,
	}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}

	repo2, service2, admin := newAdminFixture(domain.DealStatusDelivered)
	if _, err := service2.ResolveDispute(context.Background(), admin.ID, repo2.deal.ID, domain.ResolveDisputeRequest{
		Resolution: domain.ResolutionRefundToBuyer,
	}); !errors.Is(err, store.ErrInvalidDealState) {
		t.Fatalf("expected ErrInvalidDealState for undisputed deal, got %v", err)
	}
}

func TestAdminFinalizeReleasesHeldFundsOnly(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusInEscrow)

	finalized, err := service.AdminFinalize(context.Background(), admin.ID, repo.deal.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if finalized.Status != domain.DealStatusCompleted {
		t.Fatalf("expected completed, got %q", finalized.Status)
	}
	if repo.settleParams.SellerCredit != 9750 || repo.settleParams.PlatformFee != 250 {
		t.Fatalf("unexpected finalize allocation: %+v", repo.settleParams)
	}

	repo2, service2, admin2 := newAdminFixture(domain.DealStatusAwaitingPayment)
	if _, err := service2.AdminFinalize(context.Background(), admin2.ID, repo2.deal.ID); !errors.Is(err, store.ErrInvalidDealState) {
		t.Fatalf("expected ErrInvalidDealState before funding, got %v", err)
	}
	if repo2.settleCalled {
		t.Fatal("finalize must never move money that was never escrowed")
	}
}

func TestAdminCancelRefundsHeldEscrow(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusInEscrow)

	cancelled, err := service.AdminCancel(context.Background(), admin.ID, repo.deal.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cancelled.Status != domain.DealStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if !repo.settleCalled {
		t.Fatal("cancelling a funded deal must settle atomically")
	}
	if repo.settleParams.BuyerCredit != 10000 || repo.settleParams.SellerCredit != 0 || repo.settleParams.PlatformFee != 0 {
		t.Fatalf("expected full fee-free refund to buyer: %+v", repo.settleParams)
	}
}

func TestAdminCancelOfUnfundedDealMovesNoMoney(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusAwaitingPayment)

	cancelled, err := service.AdminCancel(context.Background(), admin.ID, repo.deal.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cancelled.Status != domain.DealStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}
	if repo.settleCalled {
		t.Fatal("unfunded cancel must not touch balances")
	}
	if !repo.cancelCalled {
		t.Fatal("expected plain status cancel")
	}
}

func TestAdminCancelRejectsTerminalDeal(t *testing.T) {
	repo, service, admin := newAdminFixture(domain.DealStatusCompleted)

	if _, err := service.AdminCancel(context.Background(), admin.ID, repo.deal.ID); !errors.Is(err, store.ErrInvalidDealState) {
		t.Fatalf("expected ErrInvalidDealState for completed deal, got %v", err)
	}
}

func TestGetDealHiddenFromStrangers(t *testing.T) {
	repo, service, buyer, _ := newLifecycleFixture(domain.DealStatusInEscrow)
	stranger := &domain.Profile{ID: uuid.New(), Email: "nosy@example.com", Role: domain.RoleUser}
	repo.profiles[stranger.ID] = stranger

	if _, err := service.GetDeal(context.Background(), stranger.ID, repo.deal.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := service.GetDeal(context.Background(), buyer.ID, repo.deal.ID); err != nil {
		t.Fatalf("expected participant to see the deal, got %v", err)
	}
}
