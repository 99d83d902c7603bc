/**
 * @description
 * This file contains the HTTP handlers for the onboarding-service's API
 * endpoints. Handlers are responsible for parsing incoming requests, calling
 * the appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * Error mapping follows one taxonomy: missing provider config is a 412,
 * missing identity never reaches here (the auth middleware rejects first),
 * validation problems are 400s that name the offense, and provider failures
 * surface as a generic 500 with the detail kept in the logs.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/pricing, internal/store: Service logic, catalog,
 *   and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devlaunch/onboarding-service/internal/app"
	"github.com/devlaunch/onboarding-service/internal/pricing"
	"github.com/devlaunch/onboarding-service/internal/store"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
	catalog *pricing.Catalog
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service, catalog *pricing.Catalog) *Handlers {
	return &Handlers{service: service, catalog: catalog}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps application errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var (
		invalidStatus *app.ErrInvalidStatus
		unknownItem   *pricing.ErrUnknownItem
	)
	switch {
	case errors.Is(err, app.ErrProviderNotConfigured), errors.Is(err, app.ErrEmailNotConfigured):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, app.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &invalidStatus), errors.As(err, &unknownItem),
		errors.Is(err, app.ErrEmptyCart), errors.Is(err, app.ErrMissingEmail), errors.Is(err, app.ErrUnknownEmailType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrProjectNotFound), errors.Is(err, store.ErrPaymentNotFound), errors.Is(err, store.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func authUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return "", false
	}
	return userID, true
}

// CreateStripeCheckoutHandler opens a Stripe Checkout Session for a project's
// selected items.
func (h *Handlers) CreateStripeCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authUser(w, r)
	if !ok {
		return
	}

	var in app.CreateCheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.CreateStripeCheckout(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, "stripe_checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// CreatePaystackCheckoutHandler initializes a Paystack transaction for a
// project's selected items.
func (h *Handlers) CreatePaystackCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authUser(w, r)
	if !ok {
		return
	}

	var in app.CreateCheckoutInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.CreatePaystackCheckout(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, "paystack_checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// VerifyPaystackPaymentHandler re-queries Paystack for a reference and
// completes the payment when the provider reports success.
func (h *Handlers) VerifyPaystackPaymentHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := authUser(w, r); !ok {
		return
	}

	var req struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "a transaction reference is required")
		return
	}

	result, err := h.service.VerifyPaystackPayment(r.Context(), req.Reference)
	if err != nil {
		writeServiceError(w, "verify_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SubmitProjectHandler persists a completed onboarding flow.
func (h *Handlers) SubmitProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authUser(w, r)
	if !ok {
		return
	}

	var in app.SubmitProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.service.SubmitProject(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, "submit_project", err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// GetProjectHandler returns one project. Only the owner may read it.
func (h *Handlers) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authUser(w, r)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	project, err := h.service.GetProjectForUser(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, "get_project", err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// UpdateProjectStatusHandler moves a project through its status workflow.
// Admin-only; the service enforces the caller and the status set.
func (h *Handlers) UpdateProjectStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authUser(w, r)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	var req struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateProjectStatus(r.Context(), userID, projectID, req.Status, req.Message); err != nil {
		writeServiceError(w, "update_status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SendEmailHandler dispatches one of the known transactional email types.
func (h *Handlers) SendEmailHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authUser(w, r)
	if !ok {
		return
	}

	var in app.SendEmailInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SendTypedEmail(r.Context(), userID, in); err != nil {
		writeServiceError(w, "send_email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// catalogItemResponse is one offering with its localized display price.
type catalogItemResponse struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Label     string `json:"label"`
	BasePrice int64  `json:"base_price_usd_cents"`
	Localized struct {
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Symbol    string `json:"symbol"`
		Formatted string `json:"formatted"`
	} `json:"localized"`
}

// ListCatalogHandler returns the assisted-service offerings localized to the
// country passed as ?country=. Public: the wizard needs prices before login.
func (h *Handlers) ListCatalogHandler(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")

	entries := h.catalog.Entries()
	out := make([]catalogItemResponse, len(entries))
	for i, e := range entries {
		lp := pricing.Localize(e.BaseUSDCents, country)
		out[i] = catalogItemResponse{
			ID:        e.ID,
			Category:  e.Category,
			Label:     e.Label,
			BasePrice: e.BaseUSDCents,
		}
		out[i].Localized.Amount = lp.AmountMinor
		out[i].Localized.Currency = lp.Currency
		out[i].Localized.Symbol = lp.Symbol
		out[i].Localized.Formatted = lp.Formatted
	}
	writeJSON(w, http.StatusOK, out)
}
