/**
 * @description
 * This file contains the core of the escrow application service. The `Service`
 * struct orchestrates every deal transition and withdrawal action, coordinating
 * between the ledger repository and the event producer.
 *
 * Key features:
 * - Resolves the caller's Participant role exactly once per operation.
 * - Validates guards (role + source state) fully before any mutation.
 * - Delegates all money movement to atomic repository primitives.
 * - Publishes notification events after successful commits; delivery is
 *   fire-and-forget and never fails the operation.
 *
 * @dependencies
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For the event producer.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
	"github.com/escrowpad/escrow-service/internal/store"
	"github.com/escrowpad/escrow-service/pkg/rabbitmq"
)

var (
	ErrNotParticipant        = errors.New("caller is not a participant of this deal")
	ErrNotAdmin              = errors.New("caller is not an admin")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInviteEmailMismatch   = errors.New("caller email does not match the invited counterparty")
	ErrSelfJoin              = errors.New("cannot join your own deal as the counterparty")
	ErrCancelRequiresDispute = errors.New("deal has two committed parties; open a dispute instead of cancelling")
	ErrJoinRateLimited       = errors.New("too many join attempts; try again later")
)

// RateLimiter is the interface for distributed rate limiting of join attempts.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the business logic for the deal lifecycle and ledger.
type Service struct {
	repo               store.Repository
	events             rabbitmq.Publisher
	eventExchange      string
	feeBps             int64
	minWithdrawalKobo  int64
	joinLimiter        RateLimiter
	joinLimitPerMinute int
}

// NewService creates a new escrow service instance. feeBps is the platform fee
// in basis points (250 = 2.5%).
func NewService(repo store.Repository, events rabbitmq.Publisher, eventExchange string, feeBps, minWithdrawalKobo int64) *Service {
	return &Service{
		repo:              repo,
		events:            events,
		eventExchange:     eventExchange,
		feeBps:            feeBps,
		minWithdrawalKobo: minWithdrawalKobo,
	}
}

// SetJoinRateLimiter wires the optional Redis-backed limiter for invite-code
// join attempts. A nil limiter disables limiting.
func (s *Service) SetJoinRateLimiter(limiter RateLimiter, limitPerMinute int) {
	s.joinLimiter = limiter
	s.joinLimitPerMinute = limitPerMinute
}

// ResolveProfileID converts an identity-provider subject into the internal
// profile UUID. Handlers call this once per authenticated request.
func (s *Service) ResolveProfileID(ctx context.Context, authUserID string) (uuid.UUID, error) {
	return s.repo.FindProfileIDByAuthUserID(ctx, authUserID)
}

// GetProfile returns the caller's own profile.
func (s *Service) GetProfile(ctx context.Context, profileID uuid.UUID) (*domain.Profile, error) {
	return s.repo.FindProfileByID(ctx, profileID)
}

// RegisterProfile pairs a new external identity with a balance-carrying profile.
func (s *Service) RegisterProfile(ctx context.Context, authUserID, email, fullName string) (*domain.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if authUserID == "" || email == "" {
		return nil, fmt.Errorf("%w: auth user id and email are required", ErrInvalidInput)
	}
	profile := &domain.Profile{
		ID:         uuid.New(),
		AuthUserID: authUserID,
		Email:      email,
		FullName:   strings.TrimSpace(fullName),
		Role:       domain.RoleUser,
		Balance:    0,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// SetBankDetails writes the one-time bank destination used as the withdrawal
// default and for identity matching.
func (s *Service) SetBankDetails(ctx context.Context, profileID uuid.UUID, req domain.SetBankDetailsRequest) error {
	if strings.TrimSpace(req.BankName) == "" || strings.TrimSpace(req.BankAccountNumber) == "" || strings.TrimSpace(req.BankAccountName) == "" {
		return fmt.Errorf("%w: bank name, account number and account name are required", ErrInvalidInput)
	}
	return s.repo.SetBankDetails(ctx, profileID,
		strings.TrimSpace(req.BankName), strings.TrimSpace(req.BankAccountNumber), strings.TrimSpace(req.BankAccountName))
}

// ListProfiles is the admin account listing.
func (s *Service) ListProfiles(ctx context.Context, adminID uuid.UUID, limit, offset int) ([]domain.Profile, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return s.repo.ListProfiles(ctx, normalizeLimit(limit), offset)
}

// DeleteProfile hard-deletes a user account. Admin only.
func (s *Service) DeleteProfile(ctx context.Context, adminID, profileID uuid.UUID) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	return s.repo.DeleteProfile(ctx, profileID)
}

// AdjustBalance applies a signed manual override to a profile's balance.
// Admin only; the ledger floor at zero still holds.
func (s *Service) AdjustBalance(ctx context.Context, adminID, profileID uuid.UUID, req domain.AdminBalanceAdjustmentRequest) (int64, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return 0, err
	}
	if req.Amount == 0 {
		return 0, fmt.Errorf("%w: adjustment amount must be non-zero", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return 0, fmt.Errorf("%w: adjustment reason is required", ErrInvalidInput)
	}
	newBalance, err := s.repo.AdjustBalance(ctx, profileID, req.Amount)
	if err != nil {
		return 0, err
	}
	log.Printf("level=info component=service msg=\"admin balance adjustment\" admin_id=%s profile_id=%s amount=%d reason=%q new_balance=%d",
		adminID, profileID, req.Amount, req.Reason, newBalance)
	return newBalance, nil
}

// requireAdmin loads the caller and verifies the admin role.
func (s *Service) requireAdmin(ctx context.Context, callerID uuid.UUID) error {
	caller, err := s.repo.FindProfileByID(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.Role != domain.RoleAdmin {
		return ErrNotAdmin
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

// dealRoutingKeys maps transition actions to notification routing keys on the
// escrow events topic exchange.
var dealRoutingKeys = map[domain.DealAction]string{
	domain.ActionCreate:        "deal.created",
	domain.ActionJoin:          "deal.joined",
	domain.ActionFund:          "deal.funded",
	domain.ActionMarkDelivered: "deal.delivered",
	domain.ActionConfirm:       "deal.completed",
	domain.ActionDispute:       "deal.disputed",
	domain.ActionCancel:        "deal.cancelled",
	domain.ActionResolve:       "deal.resolved",
	domain.ActionFinalize:      "deal.completed",
	domain.ActionAdminCancel:   "deal.cancelled",
}

// publishDealEvent emits a notification event for a deal transition.
// Failures are logged, never propagated: delivery is the consumer's concern.
func (s *Service) publishDealEvent(ctx context.Context, action domain.DealAction, deal *domain.Deal, actorID uuid.UUID) {
	if s.events == nil {
		return
	}
	event := domain.DealEvent{
		DealID:    deal.ID,
		Status:    deal.Status,
		Action:    action,
		ActorID:   actorID,
		BuyerID:   deal.BuyerID,
		SellerID:  deal.SellerID,
		Amount:    deal.Amount,
		Timestamp: time.Now().UTC(),
	}
	routingKey, ok := dealRoutingKeys[action]
	if !ok {
		routingKey = "deal." + string(deal.Status)
	}
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"deal event publish failed\" deal_id=%s routing_key=%s err=%v",
			deal.ID, routingKey, err)
	}
}

func (s *Service) publishWithdrawalEvent(ctx context.Context, w *domain.Withdrawal) {
	if s.events == nil {
		return
	}
	event := domain.WithdrawalEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Status:       w.Status,
		Amount:       w.Amount,
		AmountSent:   w.AmountSent,
		Timestamp:    time.Now().UTC(),
	}
	routingKey := "withdrawal." + string(w.Status)
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"withdrawal event publish failed\" withdrawal_id=%s routing_key=%s err=%v",
			w.ID, routingKey, err)
	}
}
