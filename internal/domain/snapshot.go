package domain

import "time"

// PriceSnapshot is the set of prices captured by one cache refresh.
// Prices are expressed in the quote unit (USDT); FiatPrice converts one
// quote unit into the fiat instrument.
type PriceSnapshot struct {
	prices     map[Instrument]float64
	FiatPrice  float64
	CapturedAt time.Time
}

// NewPriceSnapshot copies prices so later changes to the argument do not
// leak into the snapshot.
func NewPriceSnapshot(prices map[Instrument]float64, fiatPrice float64, capturedAt time.Time) *PriceSnapshot {
	copied := make(map[Instrument]float64, len(prices))
	for instrument, price := range prices {
		copied[instrument] = price
	}
	return &PriceSnapshot{
		prices:     copied,
		FiatPrice:  fiatPrice,
		CapturedAt: capturedAt,
	}
}

func (s *PriceSnapshot) Price(instrument Instrument) (float64, bool) {
	price, ok := s.prices[instrument]
	return price, ok
}

// Prices returns a copy of the instrument prices.
func (s *PriceSnapshot) Prices() map[Instrument]float64 {
	out := make(map[Instrument]float64, len(s.prices))
	for instrument, price := range s.prices {
		out[instrument] = price
	}
	return out
}

func (s *PriceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CapturedAt)
}
