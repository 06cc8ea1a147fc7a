package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lotvend/lotvend/internal/app"
	"github.com/lotvend/lotvend/internal/domain"
)

// Purchaser is the minimal interface needed for the buy intake.
type Purchaser interface {
	Buy(ctx context.Context, in app.BuyInput) (app.BuyResult, error)
}

// HandlePurchase returns an HTTP handler for starting a purchase.
func HandlePurchase(svc Purchaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req purchaseRequest
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

		res, err := svc.Buy(r.Context(), app.BuyInput{
			BuyerID:  req.BuyerID,
			LotID:    req.LotID,
			Username: req.Username,
			Method:   domain.PaymentMethod(req.Method),
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrLotNotFound):
				writeError(w, http.StatusNotFound, codeLotNotFound, err.Error())
			case errors.Is(err, domain.ErrInvalidMethod):
				writeError(w, http.StatusBadRequest, codeInvalidMethod, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, purchaseResponse{
			LotID:         res.LotID,
			Price:         res.Price,
			PayURL:        res.PayURL,
			InvoiceID:     res.InvoiceID,
			PriceRUB:      res.PriceRUB,
			Queued:        res.Queued,
			QueuePosition: res.QueuePosition,
		})
	}
}

type purchaseRequest struct {
	BuyerID  int64  `json:"buyer_id"`
	LotID    int64  `json:"lot_id"`
	Username string `json:"username"`
	Method   string `json:"method"`
}

type purchaseResponse struct {
	LotID         int64   `json:"lot_id"`
	Price         float64 `json:"price"`
	PayURL        string  `json:"pay_url,omitempty"`
	InvoiceID     string  `json:"invoice_id,omitempty"`
	PriceRUB      int64   `json:"price_rub,omitempty"`
	Queued        bool    `json:"queued"`
	QueuePosition int     `json:"queue_position,omitempty"`
}
