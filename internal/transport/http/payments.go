package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lotvend/lotvend/internal/app"
	"github.com/lotvend/lotvend/internal/domain"
	"github.com/lotvend/lotvend/internal/payment"
)

// PaymentChecker is the buyer-triggered confirmation path.
type PaymentChecker interface {
	OnProviderPoll(ctx context.Context, buyerID, lotID int64) (app.SettleResult, error)
}

// WebhookReceiver is the provider-push confirmation path.
type WebhookReceiver interface {
	OnWebhook(ctx context.Context, p payment.WebhookPayload) (app.SettleResult, error)
}

// HandleCheckPayment returns an HTTP handler for the "I paid" poll.
func HandleCheckPayment(svc PaymentChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req checkPaymentRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.BuyerID == 0 || req.LotID == 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "buyer_id and lot_id are required")
			return
		}

		res, err := svc.OnProviderPoll(r.Context(), req.BuyerID, req.LotID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrPaymentNotFound):
				writeError(w, http.StatusNotFound, codePaymentNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, settleResponse(res))
	}
}

// HandleWebhook returns an HTTP handler for provider push notifications.
// The provider retries on non-2xx, so every processed request answers 200;
// a bad signature is logged inside the reconciler and acknowledged here
// without acting on it.
func HandleWebhook(svc WebhookReceiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var p payment.WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if _, err := svc.OnWebhook(r.Context(), p); err != nil && !errors.Is(err, domain.ErrSignatureInvalid) {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

type checkPaymentRequest struct {
	BuyerID int64 `json:"buyer_id"`
	LotID   int64 `json:"lot_id"`
}

type settlementResponse struct {
	Outcome       string  `json:"outcome"`
	CredentialID  int64   `json:"credential_id,omitempty"`
	Payload       string  `json:"payload,omitempty"`
	Price         float64 `json:"price,omitempty"`
	QueuePosition int     `json:"queue_position,omitempty"`
}

func settleResponse(res app.SettleResult) settlementResponse {
	out := settlementResponse{Outcome: string(res.Outcome)}
	if res.Outcome == app.OutcomeDelivered {
		out.CredentialID = res.Delivery.CredentialID
		out.Payload = res.Delivery.Payload
		out.Price = res.Delivery.Price
	}
	if res.Outcome == app.OutcomeQueued {
		out.QueuePosition = res.QueuePosition
	}
	return out
}
