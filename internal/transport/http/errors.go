package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeLotNotFound          = "lot_not_found"
	codeLotNameRequired      = "lot_name_required"
	codeInvalidPrice         = "invalid_price"
	codeCredentialRequired   = "credential_required"
	codeInvalidMethod        = "invalid_payment_method"
	codePaymentNotFound      = "payment_not_found"
	codeForbidden            = "forbidden"
	codeUnknownAdmin         = "unknown_admin"
	codeNotEnoughLinks       = "not_enough_links"
	codeGiftRequestNotFound  = "gift_request_not_found"
	codeGiftNotConfigured    = "gift_not_configured"
	codeGiftRequestProcessed = "gift_request_processed"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
