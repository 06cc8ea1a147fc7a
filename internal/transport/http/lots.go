package http

import (
	"context"
	"net/http"

	"github.com/lotvend/lotvend/internal/domain"
)

// LotLister is the minimal interface needed for the public catalog.
type LotLister interface {
	Listings(ctx context.Context) ([]domain.LotListing, error)
}

// HandleListLots returns an HTTP handler for the buyer-facing catalog.
func HandleListLots(svc LotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		listings, err := svc.Listings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]lotResponse, 0, len(listings))
		for _, l := range listings {
			resp = append(resp, lotResponse{
				ID:        l.ID,
				Details:   l.Details,
				Price:     l.Price,
				Available: l.Available,
				Unclaimed: l.Unclaimed,
				QueueSize: l.QueueSize,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type lotResponse struct {
	ID        int64   `json:"id"`
	Details   string  `json:"details"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
	Unclaimed int     `json:"unclaimed"`
	QueueSize int     `json:"queue_size"`
}
