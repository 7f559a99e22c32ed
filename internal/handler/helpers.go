package handler

import (
	"encoding/json"
	"net/http"

	"github.com/spirittours/contact-router/internal/domain"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

// handleServiceError maps the routing engine's domain errors to HTTP status
// codes for the agent console's REST surface.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch e := err.(type) {
	case *domain.ErrNotFound:
		writeError(w, http.StatusNotFound, e.Error())
	case *domain.ErrUnknownConversation:
		writeError(w, http.StatusNotFound, e.Error())
	case *domain.ErrValidation:
		writeError(w, http.StatusBadRequest, e.Error())
	case *domain.ErrDuplicateID:
		writeError(w, http.StatusConflict, e.Error())
	case *domain.ErrUnauthorized:
		writeError(w, http.StatusUnauthorized, e.Error())
	case *domain.ErrMalformedPayload:
		writeError(w, http.StatusBadRequest, e.Error())
	case *domain.ErrUnsupportedEvent:
		// Delivery receipts, read marks, typing events — acknowledged, not an error.
		w.WriteHeader(http.StatusOK)
	case *domain.ErrEscalationFailed:
		logger.Warn("escalation with no registered agents", zap.String("department", e.Department))
		writeError(w, http.StatusAccepted, e.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
