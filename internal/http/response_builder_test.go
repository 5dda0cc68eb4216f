package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"ledger/internal/core"
	"ledger/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid range", fmt.Errorf("report: %w", core.ErrInvalidRange), http.StatusBadRequest, "start date should not be greater than end date"},
		{"bad body", fmt.Errorf("%w: eof", errBadRequestBody), http.StatusBadRequest, "malformed request body: eof"},
		{"missing owner", core.ErrMissingOwner, http.StatusUnauthorized, "missing owner"},
		{"insights disabled", services.ErrInsightsDisabled, http.StatusServiceUnavailable, "insights are not configured"},
		{"malformed insight", services.ErrMalformedInsight, http.StatusBadGateway, services.ErrMalformedInsight.Error()},
		{"deadline", fmt.Errorf("sum: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "request timed out"},
		{"store failure hides detail", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusFor(tt.err)
			if status != tt.status || msg != tt.message {
				t.Errorf("statusFor() = %d %q, want %d %q", status, msg, tt.status, tt.message)
			}
		})
	}
}
