/**
 * @description
 * HTTP handlers for the user-facing withdrawal workflow: requesting a
 * withdrawal against the available balance, listing the caller's history, and
 * cancelling a still-pending request. Admin review lives in handlers_admin.go.
 */

package api

import (
	"net/http"
	"strconv"

	"github.com/escrowpad/escrow-service/internal/domain"
)

// paginationParams reads limit/offset query parameters with safe fallbacks.
func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// RequestWithdrawalHandler opens a pending withdrawal for the caller.
func (h *EscrowHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	var req domain.RequestWithdrawalPayload
	if !decodeBody(w, r, h, &req) {
		return
	}
	withdrawal, err := h.service.RequestWithdrawal(r.Context(), profileID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawalsHandler returns the caller's withdrawal history.
func (h *EscrowHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	withdrawals, err := h.service.ListWithdrawalsForUser(r.Context(), profileID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawals)
}

// CancelWithdrawalHandler lets a user cancel their own pending request.
func (h *EscrowHandlers) CancelWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := parseIDParam(r, "withdrawalID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid withdrawal id")
		return
	}
	withdrawal, err := h.service.CancelWithdrawal(r.Context(), profileID, withdrawalID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawal)
}
