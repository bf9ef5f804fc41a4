package domain

import "time"

type RateRequest struct {
	From          Instrument
	To            Instrument
	Network       string
	PaymentMethod string
	Amount        float64
}

type RateQuote struct {
	Rate       float64
	Source     string
	Timestamp  time.Time
	SnapshotAt time.Time
	// Stale is set when the quote was computed from a snapshot older than
	// the cache TTL because the refresh failed.
	Stale bool
}
