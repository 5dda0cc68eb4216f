package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", log.FieldError, err)
	}
}

// statusFor maps engine errors to HTTP status codes. Anything unknown is a
// server fault and its text is not exposed.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidRange):
		return http.StatusBadRequest, core.ErrInvalidRange.Error()
	case errors.Is(err, errBadRequestBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrMissingOwner):
		return http.StatusUnauthorized, core.ErrMissingOwner.Error()
	case errors.Is(err, services.ErrInsightsDisabled):
		return http.StatusServiceUnavailable, services.ErrInsightsDisabled.Error()
	case errors.Is(err, services.ErrMalformedInsight):
		return http.StatusBadGateway, services.ErrMalformedInsight.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, component, operation string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.appMetrics.requestErrors.Add(1)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, component, operation, nil)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
