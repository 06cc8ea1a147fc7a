package domain

import "time"

type GiftKind string

const (
	GiftText     GiftKind = "text"
	GiftPhoto    GiftKind = "photo"
	GiftDocument GiftKind = "document"
	GiftVideo    GiftKind = "video"
	GiftAudio    GiftKind = "audio"
)

// GiftAsset is the single current giveaway payload: either plain text or a
// media file reference with an optional caption.
type GiftAsset struct {
	Kind    GiftKind
	Body    string
	FileRef string
}

// TextGift builds the text variant.
func TextGift(body string) GiftAsset {
	return GiftAsset{Kind: GiftText, Body: body}
}

// MediaGift builds a media variant; body is the caption.
func MediaGift(kind GiftKind, fileRef, caption string) GiftAsset {
	return GiftAsset{Kind: kind, FileRef: fileRef, Body: caption}
}

type GiftRequestStatus string

const (
	GiftRequestPending  GiftRequestStatus = "pending"
	GiftRequestApproved GiftRequestStatus = "approved"
	GiftRequestRejected GiftRequestStatus = "rejected"
)

// GiftRequest is a buyer's submitted proof-of-promotion, awaiting review.
type GiftRequest struct {
	ID          int64
	BuyerID     int64
	Username    string
	Links       string
	Status      GiftRequestStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
	ProcessedBy *int64
}

// Admin is an operator identity: a configured username, lazily bound to a
// numeric user id the first time that user promotes themselves.
type Admin struct {
	Username string
	UserID   int64
}
