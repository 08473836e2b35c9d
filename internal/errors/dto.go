package errors

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrorResponse is the body rendered for every failed API request
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the display message. Reason is set for ledger rule violations callers can act on.
type ErrorDetail struct {
	Display string         `json:"message"`
	Reason  Reason         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorResponse renders err for clients. Only the outermost hint and reportable details are exposed.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Display: displayMessage(err),
			Reason:  ReasonOf(err),
			Details: SafeDetails(err),
		},
	}
}

func displayMessage(err error) string {
	// GetAllHints is post-order, the first non-empty hint is the outermost one
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}
