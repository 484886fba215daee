package dto

import "github.com/collab-platform/backend/internal/models"

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// TransitionResponse is what every workflow action returns: the new state
// and the protocol message it produced.
type TransitionResponse struct {
	Negotiation *models.Negotiation `json:"negotiation"`
	Message     *models.Message     `json:"message,omitempty"`
}

type BreakdownResponse struct {
	Breakdown models.Breakdown `json:"breakdown"`
}
