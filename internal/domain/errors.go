package domain

import "errors"

var (
	ErrLotNotFound          = errors.New("lot not found")
	ErrQueueEntryNotFound   = errors.New("queue entry not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentPending       = errors.New("payment not received yet")
	ErrAlreadyFulfilled     = errors.New("order already fulfilled")
	ErrSignatureInvalid     = errors.New("webhook signature invalid")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrLotNameRequired      = errors.New("lot name required")
	ErrCredentialRequired   = errors.New("credential payload required")
	ErrNotAdmin             = errors.New("not an admin")
	ErrUnknownAdmin         = errors.New("unknown admin username")
	ErrGiftRequestNotFound  = errors.New("gift request not found")
	ErrGiftNotConfigured    = errors.New("gift not configured")
	ErrNotEnoughLinks       = errors.New("not enough promotion links")
	ErrGiftRequestProcessed = errors.New("gift request already processed")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidMethod        = errors.New("unknown payment method")
)
