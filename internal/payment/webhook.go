package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// WebhookPayload is the provider's push notification for an invoice. Payload
// is the opaque reference handed over at invoice creation, "<buyerId>:<lotId>".
type WebhookPayload struct {
	InvoiceID string `json:"id"`
	Status    string `json:"status"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// VerifySignature checks the HMAC-SHA256 signature over the canonical string
// "id\nstatus\npayload", keyed by SHA256 of the provider token.
func VerifySignature(token string, p WebhookPayload) bool {
	key := sha256.Sum256([]byte(token))
	check := strings.Join([]string{p.InvoiceID, p.Status, p.Payload}, "\n")

	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(check))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(p.Signature))
}

// ParseOrderReference splits the opaque "<buyerId>:<lotId>" payload.
func ParseOrderReference(payload string) (buyerID, lotID int64, err error) {
	left, right, ok := strings.Cut(payload, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed order reference %q", payload)
	}
	buyerID, err = strconv.ParseInt(left, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed buyer id in reference %q", payload)
	}
	lotID, err = strconv.ParseInt(right, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed lot id in reference %q", payload)
	}
	return buyerID, lotID, nil
}

// OrderReference builds the opaque payload attached to invoices.
func OrderReference(buyerID, lotID int64) string {
	return strconv.FormatInt(buyerID, 10) + ":" + strconv.FormatInt(lotID, 10)
}
