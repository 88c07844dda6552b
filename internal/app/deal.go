/**
 * @description
 * Deal lifecycle operations: create, join, fund, deliver, confirm, dispute,
 * cancel, and the admin resolution/finalize/cancel paths. Each operation
 * follows the same shape: load the record, resolve the caller's Participant
 * role, consult the transition table, then hand the mutation to an atomic
 * repository primitive. A lost race surfaces as an invalid-state error from
 * the store with nothing written.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
	"github.com/escrowpad/escrow-service/internal/store"
)

const defaultInspectionPeriodDays = 3

// CreateDeal opens a new deal. The creator picks their own side and names the
// counterparty by email; the returned deal carries the invite code to share.
func (s *Service) CreateDeal(ctx context.Context, creatorID uuid.UUID, req domain.CreateDealRequest) (*domain.Deal, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	counterpartyEmail := strings.ToLower(strings.TrimSpace(req.CounterpartyEmail))
	if counterpartyEmail == "" {
		return nil, fmt.Errorf("%w: counterparty email is required", ErrInvalidInput)
	}
	if req.InspectionPeriodDays < 0 {
		return nil, fmt.Errorf("%w: inspection period cannot be negative", ErrInvalidInput)
	}

	creator, err := s.repo.FindProfileByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(creator.Email, counterpartyEmail) {
		return nil, fmt.Errorf("%w: counterparty email cannot be your own", ErrInvalidInput)
	}

	inspectionDays := req.InspectionPeriodDays
	if inspectionDays == 0 {
		inspectionDays = defaultInspectionPeriodDays
	}

	deal := &domain.Deal{
		ID:                   uuid.New(),
		Title:                strings.TrimSpace(req.Title),
		Description:          strings.TrimSpace(req.Description),
		Amount:               req.Amount,
		Currency:             "NGN",
		InviteCode:           strings.ReplaceAll(uuid.NewString(), "-", ""),
		CounterpartyEmail:    counterpartyEmail,
		InspectionPeriodDays: inspectionDays,
	}

	switch req.CreatorRole {
	case "buyer":
		deal.Status = domain.DealStatusDraft
		deal.BuyerID = &creator.ID
	case "seller":
		deal.Status = domain.DealStatusAwaitingBuyer
		deal.SellerID = &creator.ID
	default:
		return nil, fmt.Errorf("%w: creator_role must be \"buyer\" or \"seller\"", ErrInvalidInput)
	}

	if err := s.repo.CreateDeal(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}
	s.publishDealEvent(ctx, domain.ActionCreate, deal, creatorID)
	return deal, nil
}

// JoinDeal fills the open party slot via the invite capability token. The
// caller's email must match the bound counterparty email; this identity check
// is a core invariant, not delegated to the auth layer.
func (s *Service) JoinDeal(ctx context.Context, callerID uuid.UUID, inviteCode string) (*domain.Deal, error) {
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return nil, fmt.Errorf("%w: invite code is required", ErrInvalidInput)
	}

	// Invite codes are guessable capability tokens, so attempts are
	// rate-limited per caller when Redis is available.
	if s.joinLimiter != nil && s.joinLimitPerMinute > 0 {
		count, _, err := s.joinLimiter.ConsumeRateLimit(ctx, "deal_join", callerID.String(), s.joinLimitPerMinute, time.Minute)
		if err != nil {
			// Fail open: a broken limiter should not block legitimate joins.
			log.Printf("level=warn component=service msg=\"join rate limiter unavailable\" err=%v", err)
		} else if count > s.joinLimitPerMinute {
			return nil, ErrJoinRateLimited
		}
	}

	caller, err := s.repo.FindProfileByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	deal, err := s.repo.FindDealByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(domain.ActionJoin, deal.Status) {
		return nil, store.ErrInvalidDealState
	}
	if (deal.BuyerID != nil && *deal.BuyerID == caller.ID) || (deal.SellerID != nil && *deal.SellerID == caller.ID) {
		return nil, ErrSelfJoin
	}
	if !strings.EqualFold(strings.TrimSpace(caller.Email), deal.CounterpartyEmail) {
		return nil, ErrInviteEmailMismatch
	}

	// draft = buyer created, the joiner becomes the seller; awaiting_buyer is
	// the mirror case.
	asBuyer := deal.Status == domain.DealStatusAwaitingBuyer
	joined, err := s.repo.BindDealParty(ctx, deal.ID, caller.ID, asBuyer, deal.Status, domain.DealStatusAwaitingPayment)
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionJoin, joined, callerID)
	return joined, nil
}

// FundDeal debits the buyer and moves the deal into escrow. Exactly-once: the
// repository runs the debit and the status compare-and-set in one transaction.
func (s *Service) FundDeal(ctx context.Context, callerID, dealID uuid.UUID) (*domain.Deal, error) {
	deal, caller, err := s.loadDealForCaller(ctx, callerID, dealID)
	if err != nil {
		return nil, err
	}
	if domain.ResolveParticipant(caller, deal) != domain.ParticipantBuyer {
		return nil, ErrNotParticipant
	}
	if !domain.CanTransition(domain.ActionFund, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	funded, err := s.repo.FundDealAtomic(ctx, deal.ID, caller.ID, deal.Amount)
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionFund, funded, callerID)
	return funded, nil
}

// MarkDelivered records the seller's delivery claim.
func (s *Service) MarkDelivered(ctx context.Context, callerID, dealID uuid.UUID) (*domain.Deal, error) {
	deal, caller, err := s.loadDealForCaller(ctx, callerID, dealID)
	if err != nil {
		return nil, err
	}
	if domain.ResolveParticipant(caller, deal) != domain.ParticipantSeller {
		return nil, ErrNotParticipant
	}
	if !domain.CanTransition(domain.ActionMarkDelivered, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	delivered, err := s.repo.MarkDealDelivered(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionMarkDelivered, delivered, callerID)
	return delivered, nil
}

// ConfirmDelivery releases escrow to the seller, net of the platform fee, and
// completes the deal. Credit and status move in one transaction.
func (s *Service) ConfirmDelivery(ctx context.Context, callerID, dealID uuid.UUID) (*domain.Deal, error) {
	deal, caller, err := s.loadDealForCaller(ctx, callerID, dealID)
	if err != nil {
		return nil, err
	}
	if domain.ResolveParticipant(caller, deal) != domain.ParticipantBuyer {
		return nil, ErrNotParticipant
	}
	if !domain.CanTransition(domain.ActionConfirm, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	settlement := sellerPayout(deal.Amount, s.feeBps)
	completed, err := s.repo.SettleDealAtomic(ctx, deal.ID, store.SettlementParams{
		FromStatuses: []domain.DealStatus{domain.DealStatusDelivered},
		ToStatus:     domain.DealStatusCompleted,
		SellerCredit: settlement.SellerCredit,
		PlatformFee:  settlement.Fee,
	})
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionConfirm, completed, callerID)
	return completed, nil
}

// OpenDispute escalates a funded deal for admin adjudication.
func (s *Service) OpenDispute(ctx context.Context, callerID, dealID uuid.UUID, reason string) (*domain.Deal, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", ErrInvalidInput)
	}
	deal, caller, err := s.loadDealForCaller(ctx, callerID, dealID)
	if err != nil {
		return nil, err
	}
	switch domain.ResolveParticipant(caller, deal) {
	case domain.ParticipantBuyer, domain.ParticipantSeller:
	default:
		return nil, ErrNotParticipant
	}
	if !domain.CanTransition(domain.ActionDispute, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	disputed, err := s.repo.OpenDealDispute(ctx, deal.ID, caller.ID, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionDispute, disputed, callerID)
	return disputed, nil
}

// CancelDeal abandons an unfunded deal. Once both parties are bound the
// bilateral cancel is refused: two committed parties must go through dispute.
func (s *Service) CancelDeal(ctx context.Context, callerID, dealID uuid.UUID) (*domain.Deal, error) {
	deal, caller, err := s.loadDealForCaller(ctx, callerID, dealID)
	if err != nil {
		return nil, err
	}
	switch domain.ResolveParticipant(caller, deal) {
	case domain.ParticipantBuyer, domain.ParticipantSeller:
	default:
		return nil, ErrNotParticipant
	}
	if !domain.CanTransition(domain.ActionCancel, deal.Status) {
		return nil, store.ErrInvalidDealState
	}
	if deal.BothPartiesBound() {
		return nil, ErrCancelRequiresDispute
	}

	cancelled, err := s.repo.CancelDeal(ctx, deal.ID, []domain.DealStatus{domain.DealStatusDraft, domain.DealStatusAwaitingBuyer})
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionCancel, cancelled, callerID)
	return cancelled, nil
}

// ResolveDispute adjudicates a disputed deal. Both credits and the closing
// status land in one transaction; a failure credits neither party.
func (s *Service) ResolveDispute(ctx context.Context, adminID, dealID uuid.UUID, req domain.ResolveDisputeRequest) (*domain.Deal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	deal, err := s.repo.FindDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(domain.ActionResolve, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	var (
		settlement domain.DealSettlement
		toStatus   domain.DealStatus
	)
	switch req.Resolution {
	case domain.ResolutionReleaseToSeller:
		settlement = sellerPayout(deal.Amount, s.feeBps)
		toStatus = domain.DealStatusCompleted
	case domain.ResolutionRefundToBuyer:
		settlement = buyerRefund(deal.Amount)
		toStatus = domain.DealStatusRefunded
	case domain.ResolutionSplit:
		if req.BuyerPercentage < 0 || req.BuyerPercentage > 100 {
			return nil, fmt.Errorf("%w: buyer_percentage must be between 0 and 100", ErrInvalidInput)
		}
		settlement = splitAllocation(deal.Amount, req.BuyerPercentage, s.feeBps)
		toStatus = domain.DealStatusCompleted
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, req.Resolution)
	}

	resolution := req.Resolution
	if strings.TrimSpace(req.Note) != "" {
		resolution = fmt.Sprintf("%s: %s", req.Resolution, strings.TrimSpace(req.Note))
	}

	resolved, err := s.repo.SettleDealAtomic(ctx, deal.ID, store.SettlementParams{
		FromStatuses: []domain.DealStatus{domain.DealStatusDisputed},
		ToStatus:     toStatus,
		BuyerCredit:  settlement.BuyerCredit,
		SellerCredit: settlement.SellerCredit,
		PlatformFee:  settlement.Fee,
		Resolution:   &resolution,
	})
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionResolve, resolved, adminID)
	return resolved, nil
}

// AdminFinalize releases escrow to the seller without requiring a dispute.
// Legal only once money is actually held (in_escrow, delivered, or disputed).
func (s *Service) AdminFinalize(ctx context.Context, adminID, dealID uuid.UUID) (*domain.Deal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	deal, err := s.repo.FindDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(domain.ActionFinalize, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	settlement := sellerPayout(deal.Amount, s.feeBps)
	resolution := "admin_finalize"
	finalized, err := s.repo.SettleDealAtomic(ctx, deal.ID, store.SettlementParams{
		FromStatuses: domain.TransitionSources(domain.ActionFinalize),
		ToStatus:     domain.DealStatusCompleted,
		SellerCredit: settlement.SellerCredit,
		PlatformFee:  settlement.Fee,
		Resolution:   &resolution,
	})
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionFinalize, finalized, adminID)
	return finalized, nil
}

// AdminCancel aborts any non-terminal deal. If escrow is already held, the
// full amount goes back to the buyer in the same transaction as the close.
func (s *Service) AdminCancel(ctx context.Context, adminID, dealID uuid.UUID) (*domain.Deal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	deal, err := s.repo.FindDealByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(domain.ActionAdminCancel, deal.Status) {
		return nil, store.ErrInvalidDealState
	}

	var cancelled *domain.Deal
	switch deal.Status {
	case domain.DealStatusInEscrow, domain.DealStatusDelivered, domain.DealStatusDisputed:
		resolution := "admin_cancel"
		cancelled, err = s.repo.SettleDealAtomic(ctx, deal.ID, store.SettlementParams{
			FromStatuses: []domain.DealStatus{domain.DealStatusInEscrow, domain.DealStatusDelivered, domain.DealStatusDisputed},
			ToStatus:     domain.DealStatusCancelled,
			BuyerCredit:  deal.Amount,
			Resolution:   &resolution,
		})
	default:
		cancelled, err = s.repo.CancelDeal(ctx, deal.ID,
			[]domain.DealStatus{domain.DealStatusDraft, domain.DealStatusAwaitingBuyer, domain.DealStatusAwaitingPayment})
	}
	if err != nil {
		return nil, err
	}
	s.publishDealEvent(ctx, domain.ActionAdminCancel, cancelled, adminID)
	return cancelled, nil
}

// GetDeal returns a deal visible to its participants and admins only.
func (s *Service) GetDeal(ctx context.Context, callerID, dealID uuid.UUID) (*domain.Deal, error) {
	deal, caller, err := s.loadDealForCaller(ctx, callerID, dealID)
	if err != nil {
		return nil, err
	}
	if domain.ResolveParticipant(caller, deal) == domain.ParticipantNone {
		return nil, ErrNotParticipant
	}
	return deal, nil
}

// ListDealsForUser returns the caller's own deals.
func (s *Service) ListDealsForUser(ctx context.Context, callerID uuid.UUID, limit, offset int) ([]domain.Deal, error) {
	return s.repo.ListDealsForUser(ctx, callerID, normalizeLimit(limit), offset)
}

// ListDeals is the admin view over all deals, optionally by status.
func (s *Service) ListDeals(ctx context.Context, adminID uuid.UUID, status *domain.DealStatus, limit, offset int) ([]domain.Deal, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListDeals(ctx, status, normalizeLimit(limit), offset)
}

func (s *Service) loadDealForCaller(ctx context.Context, callerID, dealID uuid.UUID) (*domain.Deal, *domain.Profile, error) {
	caller, err := s.repo.FindProfileByID(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	deal, err := s.repo.FindDealByID(ctx, dealID)
	if err != nil {
		return nil, nil, err
	}
	return deal, caller, nil
}
