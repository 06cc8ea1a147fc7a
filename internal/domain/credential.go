package domain

import "time"

// Credential is a single-use secret payload sold exactly once. Sold, SoldAt
// and SoldTo are set together, atomically, by the claim transaction and never
// touched again: a credential is sold iff SoldTo is non-nil.
type Credential struct {
	ID      int64
	LotID   int64
	Details string
	Sold    bool
	SoldAt  *time.Time
	SoldTo  *int64
}

// Order is the append-only audit record of one successful allocation.
// CredentialID carries a unique constraint: no credential is ever sold twice.
type Order struct {
	ID           int64
	BuyerID      int64
	LotID        int64
	CredentialID int64
	Price        float64
	CreatedAt    time.Time
}

// Claim is the result of a successful atomic credential claim.
type Claim struct {
	CredentialID int64
	Details      string
	Price        float64
	// LotEmptied reports that this claim took the last unsold credential.
	LotEmptied bool
}
