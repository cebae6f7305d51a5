// HTTP handlers for the campaign surface.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	POST /campaigns                        → create campaign (DRAFT)
//	GET  /campaigns                        → list user's campaigns
//	GET  /campaigns/{id}                   → fetch one campaign
//	POST /campaigns/{id}/start             → DRAFT|PAUSED → ACTIVE
//	POST /campaigns/{id}/pause             → ACTIVE → PAUSED
//	POST /campaigns/{id}/stop              → ACTIVE|PAUSED → COMPLETED
//	POST /campaigns/{id}/discover          → run discovery now
//	POST /campaigns/{id}/postings          → add a manual job posting
//	GET  /campaigns/{id}/offers?status=    → list campaign's offers
//	POST /offers/{id}/rescore              → re-queue an offer for analysis
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"jobmate/campaign-service/internal/joboffer"
	"jobmate/campaign-service/internal/model"
)

// DiscoveryTrigger runs an immediate discovery sweep for one campaign.
type DiscoveryTrigger interface {
	TriggerCampaign(ctx context.Context, campaignID string) error
}

// OfferRescorer re-queues a scored offer for analysis.
type OfferRescorer interface {
	Rescore(ctx context.Context, userID, offerID string) error
}

// Handler holds shared dependencies.
type Handler struct {
	svc       *Service
	discovery DiscoveryTrigger
	offers    OfferRescorer
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, discovery DiscoveryTrigger, offers OfferRescorer) *Handler {
	return &Handler{svc: svc, discovery: discovery, offers: offers}
}

// RegisterRoutes mounts the campaign and offer routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/campaigns", h.handleCampaigns)
	mux.HandleFunc("/campaigns/", h.handleCampaignAction)
	mux.HandleFunc("/offers/", h.handleOfferAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleCampaigns handles POST|GET /campaigns
func (h *Handler) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createCampaign(w, r)
	case http.MethodGet:
		h.listCampaigns(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCampaignAction handles /campaigns/{id} and /campaigns/{id}/{action}
func (h *Handler) handleCampaignAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getCampaign(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "offers" && r.Method == http.MethodGet:
		h.listOffers(w, r, parts[1])
	case len(parts) == 3 && r.Method == http.MethodPost:
		h.campaignAction(w, r, parts[1], parts[2])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

// handleOfferAction handles POST /offers/{id}/rescore
func (h *Handler) handleOfferAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "rescore" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	if err := h.offers.Rescore(r.Context(), userID, parts[1]); err != nil {
		var it *joboffer.ErrIllegalTransition
		switch {
		case errors.Is(err, joboffer.ErrNotFound):
			jsonError(w, "offer not found", http.StatusNotFound)
		case errors.As(err, &it):
			jsonError(w, it.Error(), http.StatusBadRequest)
		default:
			log.Printf("[campaign] rescore error: %v", err)
			jsonError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	jsonOK(w, map[string]string{"status": "queued"})
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) createCampaign(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	c, err := h.svc.Create(r.Context(), userID, in)
	if err != nil {
		writeServiceError(w, "createCampaign", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	campaigns, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "listCampaigns", err)
		return
	}
	jsonOK(w, campaigns)
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request, campaignID string) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	c, err := h.svc.Get(r.Context(), userID, campaignID)
	if err != nil {
		writeServiceError(w, "getCampaign", err)
		return
	}
	jsonOK(w, c)
}

// campaignAction handles start|pause|stop|discover|postings.
func (h *Handler) campaignAction(w http.ResponseWriter, r *http.Request, campaignID, action string) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	switch action {
	case "start":
		h.transition(w, r, userID, campaignID, StatusActive)
	case "pause":
		h.transition(w, r, userID, campaignID, StatusPaused)
	case "stop":
		h.transition(w, r, userID, campaignID, StatusCompleted)
	case "discover":
		h.discoverNow(w, r, userID, campaignID)
	case "postings":
		h.addPosting(w, r, userID, campaignID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, userID, campaignID string, to Status) {
	c, err := h.svc.Transition(r.Context(), userID, campaignID, to)
	if err != nil {
		writeServiceError(w, "transition", err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) discoverNow(w http.ResponseWriter, r *http.Request, userID, campaignID string) {
	// Ownership check before touching the scheduler.
	if _, err := h.svc.Get(r.Context(), userID, campaignID); err != nil {
		writeServiceError(w, "discoverNow", err)
		return
	}

	if err := h.discovery.TriggerCampaign(r.Context(), campaignID); err != nil {
		writeServiceError(w, "discoverNow", err)
		return
	}
	jsonOK(w, map[string]string{"status": "started"})
}

func (h *Handler) addPosting(w http.ResponseWriter, r *http.Request, userID, campaignID string) {
	var posting model.JobResult
	if err := json.NewDecoder(r.Body).Decode(&posting); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if posting.Title == "" {
		jsonError(w, "posting must contain a title", http.StatusBadRequest)
		return
	}

	if err := h.svc.AddManualPosting(r.Context(), userID, campaignID, posting); err != nil {
		writeServiceError(w, "addPosting", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func (h *Handler) listOffers(w http.ResponseWriter, r *http.Request, campaignID string) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	offers, err := h.svc.ListOffers(r.Context(), userID, campaignID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, "listOffers", err)
		return
	}
	jsonOK(w, offers)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
	}
	return userID
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(w, "campaign not found", http.StatusNotFound)
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	default:
		log.Printf("[campaign] %s error: %v", op, err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
