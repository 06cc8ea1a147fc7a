package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lotvend/lotvend/internal/domain"
)

// GiftRequestService is the minimal interface for the giveaway endpoints.
type GiftRequestService interface {
	SubmitRequest(ctx context.Context, buyerID int64, username, links string) (int64, error)
	PendingRequests(ctx context.Context) ([]domain.GiftRequest, error)
	Review(ctx context.Context, requestID int64, approve bool, adminID int64) (domain.GiftRequest, error)
	SetGift(ctx context.Context, asset domain.GiftAsset) error
}

// HandleSubmitGiftRequest returns an HTTP handler for buyer promotion-proof
// submissions.
func HandleSubmitGiftRequest(svc GiftRequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req submitGiftRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.BuyerID == 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "buyer_id is required")
			return
		}

		id, err := svc.SubmitRequest(r.Context(), req.BuyerID, req.Username, req.Links)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotEnoughLinks):
				writeError(w, http.StatusBadRequest, codeNotEnoughLinks, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		writeJSON(w, http.StatusCreated, submitGiftResponse{ID: id})
	}
}

// HandlePendingGiftRequests returns an HTTP handler listing requests awaiting
// review.
func HandlePendingGiftRequests(svc GiftRequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		requests, err := svc.PendingRequests(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]giftRequestResponse, 0, len(requests))
		for _, req := range requests {
			resp = append(resp, giftRequestResponse{
				ID:        req.ID,
				BuyerID:   req.BuyerID,
				Username:  req.Username,
				Links:     req.Links,
				Status:    string(req.Status),
				CreatedAt: req.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleReviewGiftRequest returns an HTTP handler for
// POST /admin/gifts/requests/{id}/review.
func HandleReviewGiftRequest(svc GiftRequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		requestID, ok := parseGiftReviewPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req reviewGiftRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		reviewed, err := svc.Review(r.Context(), requestID, req.Approve, CallerID(r.Context()))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrGiftRequestNotFound):
				writeError(w, http.StatusNotFound, codeGiftRequestNotFound, err.Error())
			case errors.Is(err, domain.ErrGiftRequestProcessed):
				writeError(w, http.StatusConflict, codeGiftRequestProcessed, err.Error())
			case errors.Is(err, domain.ErrGiftNotConfigured):
				writeError(w, http.StatusConflict, codeGiftNotConfigured, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		writeJSON(w, http.StatusOK, reviewGiftResponse{ID: reviewed.ID, Status: string(reviewed.Status)})
	}
}

// HandleSetGift returns an HTTP handler for PUT /admin/gift.
func HandleSetGift(svc GiftRequestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req setGiftRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		asset, ok := giftAssetFromRequest(req)
		if !ok {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unsupported gift kind")
			return
		}

		if err := svc.SetGift(r.Context(), asset); err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func giftAssetFromRequest(req setGiftRequest) (domain.GiftAsset, bool) {
	switch domain.GiftKind(req.Kind) {
	case domain.GiftText:
		return domain.TextGift(req.Body), true
	case domain.GiftPhoto, domain.GiftDocument, domain.GiftVideo, domain.GiftAudio:
		if req.FileRef == "" {
			return domain.GiftAsset{}, false
		}
		return domain.MediaGift(domain.GiftKind(req.Kind), req.FileRef, req.Body), true
	}
	return domain.GiftAsset{}, false
}

// parseGiftReviewPath matches "/admin/gifts/requests/{id}/review".
func parseGiftReviewPath(path string) (int64, bool) {
	trimmed := strings.TrimPrefix(path, "/admin/gifts/requests/")
	if trimmed == path {
		return 0, false
	}
	idPart, rest, ok := strings.Cut(trimmed, "/")
	if !ok || rest != "review" {
		return 0, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type submitGiftRequest struct {
	BuyerID  int64  `json:"buyer_id"`
	Username string `json:"username"`
	Links    string `json:"links"`
}

type submitGiftResponse struct {
	ID int64 `json:"id"`
}

type giftRequestResponse struct {
	ID        int64     `json:"id"`
	BuyerID   int64     `json:"buyer_id"`
	Username  string    `json:"username"`
	Links     string    `json:"links"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type reviewGiftRequest struct {
	Approve bool `json:"approve"`
}

type reviewGiftResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type setGiftRequest struct {
	Kind    string `json:"kind"`
	Body    string `json:"body"`
	FileRef string `json:"file_ref"`
}
