package handlers

import (
	"net/http"

	"github.com/openequity/Settlement-Backend/internal/api/response"
	"github.com/openequity/Settlement-Backend/internal/provider"
	"github.com/openequity/Settlement-Backend/internal/service"
)

// WebhookHandler handles transfer state notifications delivered by the
// payment provider.
type WebhookHandler struct {
	settlementService *service.SettlementService
}

// NewWebhookHandler creates a new WebhookHandler with the provided service dependency.
func NewWebhookHandler(settlementService *service.SettlementService) *WebhookHandler {
	return &WebhookHandler{
		settlementService: settlementService,
	}
}

// TransferStateChange handles POST requests from the provider's webhook
// delivery. The endpoint always returns 200 for well-formed payloads the
// engine chooses to ignore (unknown event types, unknown transfer ids,
// duplicate deliveries) so the provider does not redeliver them forever.
//
// Endpoint: POST /api/webhooks/transfers
// Request Body: provider WebhookEvent (event_type, resource_id, current_state)
// Response: 200 OK
// Error: 400 Bad Request if the payload is malformed
// Error: 500 Internal Server Error if applying the event fails
func (h *WebhookHandler) TransferStateChange(w http.ResponseWriter, r *http.Request) {
	event, err := parseJSON[provider.WebhookEvent](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.settlementService.HandleWebhookEvent(event); err != nil {
		response.RespondError(w, http.StatusInternalServerError, "failed to process webhook event", err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
