/**
 * @description
 * HTTP handlers for the admin surface: dispute resolution, forced deal
 * finalization and cancellation, the withdrawal approval queue, and account
 * management. Role checks happen in the service layer; these handlers only
 * parse and translate.
 */

package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/domain"
)

// AdminListDealsHandler lists all deals, optionally filtered by status.
func (h *EscrowHandlers) AdminListDealsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	var status *domain.DealStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.DealStatus(raw)
		status = &s
	}
	deals, err := h.service.ListDeals(r.Context(), profileID, status, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deals)
}

// ResolveDisputeHandler adjudicates a disputed deal.
func (h *EscrowHandlers) ResolveDisputeHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	dealID, err := parseIDParam(r, "dealID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid deal id")
		return
	}
	var req domain.ResolveDisputeRequest
	if !decodeBody(w, r, h, &req) {
		return
	}
	deal, err := h.service.ResolveDispute(r.Context(), profileID, dealID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deal)
}

// AdminFinalizeDealHandler force-completes a funded deal in the seller's favor.
func (h *EscrowHandlers) AdminFinalizeDealHandler(w http.ResponseWriter, r *http.Request) {
	h.dealTransitionHandler(w, r, func(callerID, dealID uuid.UUID) (*domain.Deal, error) {
		return h.service.AdminFinalize(r.Context(), callerID, dealID)
	})
}

// AdminCancelDealHandler cancels a deal in any non-terminal state, refunding
// the buyer when escrow is held.
func (h *EscrowHandlers) AdminCancelDealHandler(w http.ResponseWriter, r *http.Request) {
	h.dealTransitionHandler(w, r, func(callerID, dealID uuid.UUID) (*domain.Deal, error) {
		return h.service.AdminCancel(r.Context(), callerID, dealID)
	})
}

// AdminListPendingWithdrawalsHandler returns the approval queue.
func (h *EscrowHandlers) AdminListPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	withdrawals, err := h.service.ListPendingWithdrawals(r.Context(), profileID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawals)
}

// ApproveWithdrawalHandler settles a pending withdrawal, debiting the user.
func (h *EscrowHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseIDParam(r, "withdrawalID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}
	var req domain.ApproveWithdrawalPayload
	if !decodeBody(w, r, h, &req) {
		return
	}
	withdrawal, err := h.service.ApproveWithdrawal(r.Context(), profileID, withdrawalID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

// RejectWithdrawalHandler closes a pending withdrawal with a reason.
func (h *EscrowHandlers) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseIDParam(r, "withdrawalID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}
	var req domain.RejectWithdrawalPayload
	if !decodeBody(w, r, h, &req) {
		return
	}
	withdrawal, err := h.service.RejectWithdrawal(r.Context(), profileID, withdrawalID, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}

// AdminListProfilesHandler lists user accounts.
func (h *EscrowHandlers) AdminListProfilesHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	profiles, err := h.service.ListProfiles(r.Context(), profileID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

// AdminAdjustBalanceHandler applies a signed manual balance override.
func (h *EscrowHandlers) AdminAdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	targetID, err := parseIDParam(r, "profileID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	var req domain.AdminBalanceAdjustmentRequest
	if !decodeBody(w, r, h, &req) {
		return
	}
	newBalance, err := h.service.AdjustBalance(r.Context(), callerID, targetID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": newBalance})
}

// AdminDeleteProfileHandler hard-deletes a user account.
func (h *EscrowHandlers) AdminDeleteProfileHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	targetID, err := parseIDParam(r, "profileID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid profile id")
		return
	}
	if err := h.service.DeleteProfile(r.Context(), callerID, targetID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "profile deleted"})
}
