/**
 * @description
 * This file contains the HTTP handlers for the fulfillment-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models and
 *   custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cecoalimentos/fulfillment-service/internal/app"
	"github.com/cecoalimentos/fulfillment-service/internal/domain"
	"github.com/cecoalimentos/fulfillment-service/internal/store"
)

// FulfillmentHandlers holds the application service that handlers will use.
type FulfillmentHandlers struct {
	service *app.Service
}

// NewFulfillmentHandlers creates a new instance of FulfillmentHandlers.
func NewFulfillmentHandlers(service *app.Service) *FulfillmentHandlers {
	return &FulfillmentHandlers{service: service}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *FulfillmentHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
		}
	}
}

func (h *FulfillmentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps the service/store error taxonomy onto HTTP statuses.
func (h *FulfillmentHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrMemberNotFound),
		errors.Is(err, store.ErrComboNotFound),
		errors.Is(err, store.ErrPurchaseNotFound),
		errors.Is(err, store.ErrProofNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrActivePurchase),
		errors.Is(err, store.ErrAlreadyProcessed):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrWrongOwner):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrComboUnavailable),
		errors.Is(err, app.ErrInvalidState),
		errors.Is(err, app.ErrValidation),
		errors.Is(err, store.ErrInvalidTransition):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		log.Printf("level=error component=api msg=\"request failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// OpenPurchaseHandler handles requests to open a purchase intent for a combo.
func (h *FulfillmentHandlers) OpenPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := CallerMemberID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "could not get member id from context")
		return
	}

	var req domain.OpenPurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ComboID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "combo_id is required")
		return
	}

	purchase, err := h.service.OpenPurchase(r.Context(), memberID, req.ComboID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, purchase)
}

// ListMyPurchasesHandler returns the caller's purchase history.
func (h *FulfillmentHandlers) ListMyPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := CallerMemberID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "could not get member id from context")
		return
	}

	purchases, err := h.service.ListMemberPurchases(r.Context(), memberID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if purchases == nil {
		purchases = []domain.Purchase{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": purchases})
}

// CancelPurchaseHandler cancels the caller's purchase while it still awaits
// payment.
func (h *FulfillmentHandlers) CancelPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := CallerMemberID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "could not get member id from context")
		return
	}
	purchaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}

	purchase, err := h.service.CancelPurchase(r.Context(), memberID, purchaseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, purchase)
}

// GetPickupSlotHandler returns the pickup slot assigned to one of the
// caller's purchases.
func (h *FulfillmentHandlers) GetPickupSlotHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := CallerMemberID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "could not get member id from context")
		return
	}
	purchaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid purchase id")
		return
	}

	slot, err := h.service.FindPickupSlot(r.Context(), memberID, purchaseID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if slot == nil {
		h.writeError(w, http.StatusNotFound, "no pickup slot assigned")
		return
	}
	h.writeJSON(w, http.StatusOK, slot)
}

// SubmitProofHandler registers payment evidence for the caller's purchase.
func (h *FulfillmentHandlers) SubmitProofHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := CallerMemberID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "could not get member id from context")
		return
	}

	var req domain.SubmitProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PurchaseID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "purchase_id is required")
		return
	}

	proof, err := h.service.SubmitProof(r.Context(), memberID, req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, proof)
}

// ListPendingProofsHandler returns the paginated verification queue.
func (h *FulfillmentHandlers) ListPendingProofsHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = 10
	}

	proofs, total, err := h.service.ListPendingProofs(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if proofs == nil {
		proofs = []domain.PendingProofSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"proofs":       proofs,
		"total":        total,
		"current_page": page,
	})
}

// VerifyPaymentHandler executes a verifier decision on a pending proof.
func (h *FulfillmentHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	verifierID, ok := CallerMemberID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "could not get verifier id from context")
		return
	}
	proofID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid proof id")
		return
	}

	var req domain.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.VerifyPayment(r.Context(), proofID, verifierID, req.Decision, req.Notes)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
