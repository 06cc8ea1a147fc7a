package domain

// Lot is a sellable listing backed by zero or more single-use credentials at
// a fixed price (denominated in the provider asset, e.g. USDT).
//
// Available is derived from credential membership: it is true exactly while
// the lot has at least one unsold credential. The ledger store recomputes it
// on every add and claim; nothing else writes it.
type Lot struct {
	ID        int64
	Details   string
	Price     float64
	Available bool
}

// LotStats aggregates sales figures for one lot.
type LotStats struct {
	Lot
	Total     int
	Sold      int
	Unclaimed int
	Revenue   float64
}

// LotListing is a lot as shown to buyers, with live stock and queue depth.
type LotListing struct {
	Lot
	Unclaimed int
	QueueSize int
}
