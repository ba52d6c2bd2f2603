package agent

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/assigny/clinic-agent/pkg/logging"
)

// Handler exposes the orchestration core over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("agent: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Chat handles POST /agent/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.HandleMessage(r.Context(), req)
	if err != nil {
		h.writeError(w, req.SessionID, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /agent/history?session_id=...&limit=...
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id parameter required", http.StatusBadRequest)
		return
	}

	var limit int64 = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	turns, err := h.service.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", sessionID, "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"turns":      turns,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, ErrRoleConflict):
		http.Error(w, "session already belongs to a different role", http.StatusConflict)
	case errors.Is(err, ErrEmptyUtterance):
		http.Error(w, "message is required", http.StatusBadRequest)
	case errors.Is(err, ErrUnknownRole):
		http.Error(w, "role must be patient or doctor", http.StatusBadRequest)
	default:
		h.logger.Error("chat request failed", "session_id", sessionID, "error", err)
		http.Error(w, "something went wrong handling your message", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
