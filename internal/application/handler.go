// HTTP handlers for the application surface.
//
// All routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /applications?status=             → list user's applications
//	GET  /applications/{id}                → fetch one application
//	GET  /applications/{id}/documents      → list generated documents
//	POST /applications/{id}/confirm        → approve for submission
//	POST /applications/{id}/withdraw       → terminate the application
//	POST /applications/{id}/regenerate     → re-queue document generation
//	POST /applications/{id}/retry          → retry a failed submission
//	POST /applications/{id}/mark-submitted → record a manual submission
package application

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"jobmate/campaign-service/internal/model"
)

// Handler holds shared dependencies.
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts all application routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/applications", h.handleApplications)
	mux.HandleFunc("/applications/", h.handleApplicationAction)
}

// handleApplications handles GET /applications
func (h *Handler) handleApplications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	apps, err := h.svc.List(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, "listApplications", err)
		return
	}
	jsonOK(w, apps)
}

// handleApplicationAction handles /applications/{id} and
// /applications/{id}/{action}
func (h *Handler) handleApplicationAction(w http.ResponseWriter, r *http.Request) {
	userID := requireUser(w, r)
	if userID == "" {
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getApplication(w, r, userID, parts[1])
	case len(parts) == 3 && parts[2] == "documents" && r.Method == http.MethodGet:
		h.listDocuments(w, r, userID, parts[1])
	case len(parts) == 3 && r.Method == http.MethodPost:
		h.action(w, r, userID, parts[1], parts[2])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request, userID, appID string) {
	app, err := h.svc.Get(r.Context(), userID, appID)
	if err != nil {
		writeError(w, "getApplication", err)
		return
	}
	jsonOK(w, app)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request, userID, appID string) {
	docs, err := h.svc.Documents(r.Context(), userID, appID)
	if err != nil {
		writeError(w, "listDocuments", err)
		return
	}
	jsonOK(w, docs)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, userID, appID, action string) {
	var (
		app *model.Application
		err error
	)
	switch action {
	case "confirm":
		app, err = h.svc.Confirm(r.Context(), userID, appID)
	case "withdraw":
		app, err = h.svc.Withdraw(r.Context(), userID, appID)
	case "regenerate":
		app, err = h.svc.Regenerate(r.Context(), userID, appID)
	case "retry":
		app, err = h.svc.RetrySubmission(r.Context(), userID, appID)
	case "mark-submitted":
		app, err = h.svc.MarkSubmitted(r.Context(), userID, appID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, action, err)
		return
	}
	jsonOK(w, app)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func requireUser(w http.ResponseWriter, r *http.Request) string {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
	}
	return userID
}

func writeError(w http.ResponseWriter, op string, err error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		jsonError(w, "application not found", http.StatusNotFound)
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	default:
		log.Printf("[application] %s error: %v", op, err)
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
