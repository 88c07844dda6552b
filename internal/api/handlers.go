/**
 * @description
 * This file contains the HTTP handlers for the deal lifecycle and profile
 * endpoints. Handlers parse incoming requests, resolve the caller's internal
 * profile id from the authenticated subject, call the application service, and
 * translate service errors into HTTP statuses.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/escrowpad/escrow-service/internal/app"
	"github.com/escrowpad/escrow-service/internal/domain"
	"github.com/escrowpad/escrow-service/internal/store"
)

// EscrowHandlers holds the application service that handlers will use.
type EscrowHandlers struct {
	service *app.Service
}

// NewEscrowHandlers creates a new instance of EscrowHandlers.
func NewEscrowHandlers(service *app.Service) *EscrowHandlers {
	return &EscrowHandlers{service: service}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *EscrowHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
		}
	}
}

func (h *EscrowHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service-layer sentinel errors onto HTTP statuses.
// Unknown errors become a 500 with the detail kept server-side.
func (h *EscrowHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrProfileNotFound),
		errors.Is(err, store.ErrDealNotFound),
		errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, "insufficient balance for this operation")
	case errors.Is(err, store.ErrInvalidDealState),
		errors.Is(err, store.ErrInvalidWithdrawalState),
		errors.Is(err, store.ErrDuplicatePendingWithdrawal),
		errors.Is(err, store.ErrPartySlotTaken),
		errors.Is(err, store.ErrBankDetailsAlreadySet),
		errors.Is(err, app.ErrCancelRequiresDispute):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotParticipant),
		errors.Is(err, app.ErrNotAdmin),
		errors.Is(err, app.ErrInviteEmailMismatch),
		errors.Is(err, app.ErrSelfJoin):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrJoinRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireProfileID resolves the authenticated subject to the internal profile
// id, writing the error response itself when resolution fails.
func (h *EscrowHandlers) requireProfileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	profileID, err := h.service.ResolveProfileID(r.Context(), subject)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			h.writeError(w, http.StatusUnauthorized, "no profile for authenticated identity")
			return uuid.Nil, false
		}
		h.writeServiceError(w, err)
		return uuid.Nil, false
	}
	return profileID, true
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func decodeBody(w http.ResponseWriter, r *http.Request, h *EscrowHandlers, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// RegisterProfileHandler pairs the authenticated identity with a new profile.
func (h *EscrowHandlers) RegisterProfileHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}
	if !decodeBody(w, r, h, &req) {
		return
	}

	profile, err := h.service.RegisterProfile(r.Context(), subject, req.Email, req.FullName)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, profile)
}

// GetProfileHandler returns the caller's own profile, including balance.
func (h *EscrowHandlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(r.Context(), profileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// SetBankDetailsHandler performs the one-time bank details write.
func (h *EscrowHandlers) SetBankDetailsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	var req domain.SetBankDetailsRequest
	if !decodeBody(w, r, h, &req) {
		return
	}
	if err := h.service.SetBankDetails(r.Context(), profileID, req); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "bank details saved"})
}

// CreateDealHandler opens a new deal with the caller on their chosen side.
func (h *EscrowHandlers) CreateDealHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	var req domain.CreateDealRequest
	if !decodeBody(w, r, h, &req) {
		return
	}
	deal, err := h.service.CreateDeal(r.Context(), profileID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, deal)
}

// JoinDealHandler redeems an invite code for the counterparty slot.
func (h *EscrowHandlers) JoinDealHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	var req domain.JoinDealRequest
	if !decodeBody(w, r, h, &req) {
		return
	}
	deal, err := h.service.JoinDeal(r.Context(), profileID, req.InviteCode)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deal)
}

// ListDealsHandler returns the caller's deals.
func (h *EscrowHandlers) ListDealsHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	limit, offset := paginationParams(r)
	deals, err := h.service.ListDealsForUser(r.Context(), profileID, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deals)
}

// GetDealHandler returns one deal, visible to participants and admins only.
func (h *EscrowHandlers) GetDealHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	dealID, err := parseIDParam(r, "dealID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid deal id")
		return
	}
	deal, err := h.service.GetDeal(r.Context(), profileID, dealID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deal)
}

// dealTransitionHandler wraps the common shape of participant transitions.
func (h *EscrowHandlers) dealTransitionHandler(
	w http.ResponseWriter, r *http.Request,
	transition func(callerID, dealID uuid.UUID) (*domain.Deal, error),
) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	dealID, err := parseIDParam(r, "dealID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid deal id")
		return
	}
	deal, err := transition(profileID, dealID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deal)
}

// FundDealHandler moves an awaiting_payment deal into escrow.
func (h *EscrowHandlers) FundDealHandler(w http.ResponseWriter, r *http.Request) {
	h.dealTransitionHandler(w, r, func(callerID, dealID uuid.UUID) (*domain.Deal, error) {
		return h.service.FundDeal(r.Context(), callerID, dealID)
	})
}

// MarkDeliveredHandler records the seller's delivery claim.
func (h *EscrowHandlers) MarkDeliveredHandler(w http.ResponseWriter, r *http.Request) {
	h.dealTransitionHandler(w, r, func(callerID, dealID uuid.UUID) (*domain.Deal, error) {
		return h.service.MarkDelivered(r.Context(), callerID, dealID)
	})
}

// ConfirmDeliveryHandler releases escrow to the seller and completes the deal.
func (h *EscrowHandlers) ConfirmDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	h.dealTransitionHandler(w, r, func(callerID, dealID uuid.UUID) (*domain.Deal, error) {
		return h.service.ConfirmDelivery(r.Context(), callerID, dealID)
	})
}

// CancelDealHandler abandons an unfunded deal.
func (h *EscrowHandlers) CancelDealHandler(w http.ResponseWriter, r *http.Request) {
	h.dealTransitionHandler(w, r, func(callerID, dealID uuid.UUID) (*domain.Deal, error) {
		return h.service.CancelDeal(r.Context(), callerID, dealID)
	})
}

// OpenDisputeHandler escalates a funded deal with a mandatory reason.
func (h *EscrowHandlers) OpenDisputeHandler(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.requireProfileID(w, r)
	if !ok {
		return
	}
	dealID, err := parseIDParam(r, "dealID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid deal id")
		return
	}
	var req domain.OpenDisputeRequest
	if !decodeBody(w, r, h, &req) {
		return
	}
	deal, err := h.service.OpenDispute(r.Context(), profileID, dealID, req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deal)
}
