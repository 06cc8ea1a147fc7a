package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lotvend/lotvend/internal/app"
	"github.com/lotvend/lotvend/internal/domain"
)

// AdminCatalog is the minimal interface needed for lot administration.
type AdminCatalog interface {
	CreateLot(ctx context.Context, details string, price float64) (int64, error)
	Replenish(ctx context.Context, lotID int64, credential string) (app.ReplenishResult, error)
	Delete(ctx context.Context, lotID int64) (int, error)
	SetPrice(ctx context.Context, lotID int64, price float64) error
	LotStats(ctx context.Context, lotID int64) (domain.LotStats, error)
	Stats(ctx context.Context) ([]domain.LotStats, error)
}

// ManualConfirmer is the operator confirmation path for the manual rail.
type ManualConfirmer interface {
	OnManualConfirm(ctx context.Context, lotID int64, buyerHandle string) (app.SettleResult, error)
}

// Promoter grants operator rights.
type Promoter interface {
	Promote(ctx context.Context, username string) error
}

// ConsoleRunner feeds one operator message through the console state machine.
type ConsoleRunner interface {
	Handle(ctx context.Context, userID int64, text string) (string, error)
}

// HandleAdminLots returns an HTTP handler for POST /admin/lots.
func HandleAdminLots(svc AdminCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createLotRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		id, err := svc.CreateLot(r.Context(), req.Details, req.Price)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrLotNameRequired):
				writeError(w, http.StatusBadRequest, codeLotNameRequired, err.Error())
			case errors.Is(err, domain.ErrInvalidPrice):
				writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, createLotResponse{ID: id})
	}
}

// HandleAdminLotSubtree routes /admin/lots/{id}, /admin/lots/{id}/price,
// /admin/lots/{id}/credentials and /admin/lots/{id}/stats.
func HandleAdminLotSubtree(svc AdminCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lotID, rest, ok := parseAdminLotPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch {
		case rest == "" && r.Method == http.MethodDelete:
			handleDeleteLot(w, r, svc, lotID)
		case rest == "price" && r.Method == http.MethodPut:
			handleSetPrice(w, r, svc, lotID)
		case rest == "credentials" && r.Method == http.MethodPost:
			handleReplenish(w, r, svc, lotID)
		case rest == "stats" && r.Method == http.MethodGet:
			handleLotStats(w, r, svc, lotID)
		case rest == "" || rest == "price" || rest == "credentials" || rest == "stats":
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleDeleteLot(w http.ResponseWriter, r *http.Request, svc AdminCatalog, lotID int64) {
	dropped, err := svc.Delete(r.Context(), lotID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLotNotFound):
			writeError(w, http.StatusNotFound, codeLotNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, deleteLotResponse{DroppedQueueEntries: dropped})
}

func handleSetPrice(w http.ResponseWriter, r *http.Request, svc AdminCatalog, lotID int64) {
	var req setPriceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	if err := svc.SetPrice(r.Context(), lotID, req.Price); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPrice):
			writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
		case errors.Is(err, domain.ErrLotNotFound):
			writeError(w, http.StatusNotFound, codeLotNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleReplenish(w http.ResponseWriter, r *http.Request, svc AdminCatalog, lotID int64) {
	var req addCredentialRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	res, err := svc.Replenish(r.Context(), lotID, req.Credential)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCredentialRequired):
			writeError(w, http.StatusBadRequest, codeCredentialRequired, err.Error())
		case errors.Is(err, domain.ErrLotNotFound):
			writeError(w, http.StatusNotFound, codeLotNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	resp := addCredentialResponse{CredentialID: res.CredentialID}
	for _, d := range res.Served {
		resp.Served = append(resp.Served, servedBuyer{BuyerID: d.BuyerID, CredentialID: d.CredentialID})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func handleLotStats(w http.ResponseWriter, r *http.Request, svc AdminCatalog, lotID int64) {
	st, err := svc.LotStats(r.Context(), lotID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLotNotFound):
			writeError(w, http.StatusNotFound, codeLotNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(st))
}

// HandleAdminStats returns an HTTP handler for GET /admin/stats.
func HandleAdminStats(svc AdminCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]lotStatsResponse, 0, len(stats))
		for _, st := range stats {
			resp = append(resp, statsResponse(st))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleManualConfirm returns an HTTP handler for the out-of-band rail's
// operator confirmation.
func HandleManualConfirm(svc ManualConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req manualConfirmRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.LotID == 0 || req.Username == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "lot_id and username are required")
			return
		}

		res, err := svc.OnManualConfirm(r.Context(), req.LotID, req.Username)
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

// HandlePromote returns an HTTP handler for granting operator rights.
func HandlePromote(svc Promoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req promoteRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.Promote(r.Context(), req.Username); err != nil {
			switch {
			case errors.Is(err, domain.ErrUnknownAdmin):
				writeError(w, http.StatusBadRequest, codeUnknownAdmin, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleConsole returns an HTTP handler for the free-text operator console.
// The session is keyed by the authenticated caller id.
func HandleConsole(svc ConsoleRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req consoleRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		reply, err := svc.Handle(r.Context(), CallerID(r.Context()), req.Text)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, consoleResponse{Reply: reply})
	}
}

// parseAdminLotPath splits "/admin/lots/{id}[/rest]" into the lot id and the
// remaining segment.
func parseAdminLotPath(path string) (int64, string, bool) {
	trimmed := strings.TrimPrefix(path, "/admin/lots/")
	if trimmed == path || trimmed == "" {
		return 0, "", false
	}
	idPart, rest, _ := strings.Cut(trimmed, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	if strings.Contains(rest, "/") {
		return 0, "", false
	}
	return id, rest, true
}

func statsResponse(st domain.LotStats) lotStatsResponse {
	return lotStatsResponse{
		ID:        st.ID,
		Details:   st.Details,
		Price:     st.Price,
		Total:     st.Total,
		Sold:      st.Sold,
		Unclaimed: st.Unclaimed,
		Revenue:   st.Revenue,
	}
}

type createLotRequest struct {
	Details string  `json:"details"`
	Price   float64 `json:"price"`
}

type createLotResponse struct {
	ID int64 `json:"id"`
}

type setPriceRequest struct {
	Price float64 `json:"price"`
}

type addCredentialRequest struct {
	Credential string `json:"credential"`
}

type servedBuyer struct {
	BuyerID      int64 `json:"buyer_id"`
	CredentialID int64 `json:"credential_id"`
}

type addCredentialResponse struct {
	CredentialID int64         `json:"credential_id"`
	Served       []servedBuyer `json:"served,omitempty"`
}

type deleteLotResponse struct {
	DroppedQueueEntries int `json:"dropped_queue_entries"`
}

type lotStatsResponse struct {
	ID        int64   `json:"id"`
	Details   string  `json:"details"`
	Price     float64 `json:"price"`
	Total     int     `json:"total"`
	Sold      int     `json:"sold"`
	Unclaimed int     `json:"unclaimed"`
	Revenue   float64 `json:"revenue"`
}

type manualConfirmRequest struct {
	LotID    int64  `json:"lot_id"`
	Username string `json:"username"`
}

type promoteRequest struct {
	Username string `json:"username"`
}

type consoleRequest struct {
	Text string `json:"text"`
}

type consoleResponse struct {
	Reply string `json:"reply"`
}
