package response

type RateResponse struct {
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
	// Ts is the quote time in epoch milliseconds.
	Ts int64 `json:"ts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	Ready       bool               `json:"ready"`
	TTLSeconds  float64            `json:"ttl_seconds"`
	SnapshotAt  *int64             `json:"snapshot_at,omitempty"`
	AgeSeconds  *float64           `json:"age_seconds,omitempty"`
	FiatPrice   float64            `json:"fiat_price,omitempty"`
	Prices      map[string]float64 `json:"prices,omitempty"`
	LastAttempt *int64             `json:"last_attempt,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
}
