package domain

import "strings"

// FeeSchedule maps a settlement channel (network or payment method) to an
// additive fee fraction. An absent key and a key configured as 0 both mean
// "no adjustment".
type FeeSchedule map[string]float64

// Multiplier returns 1 + fraction for the key, or exactly 1 when the key is
// unknown or its fraction is zero.
func (s FeeSchedule) Multiplier(key string) float64 {
	fraction, ok := s.lookup(key)
	if !ok || fraction == 0 {
		return 1
	}
	return 1 + fraction
}

func (s FeeSchedule) lookup(key string) (float64, bool) {
	if fraction, ok := s[key]; ok {
		return fraction, true
	}
	for k, fraction := range s {
		if strings.EqualFold(k, key) {
			return fraction, true
		}
	}
	return 0, false
}

// FeeTable holds the per-network and per-payment-method surcharges.
type FeeTable struct {
	Network       FeeSchedule
	PaymentMethod FeeSchedule
}

// SpreadPolicy is the base markup with a volume discount. The zero value is
// the identity spread.
type SpreadPolicy struct {
	Base      float64
	BigAmount float64
	Threshold float64
}

func (p SpreadPolicy) Fraction(amount float64) float64 {
	if p.Threshold > 0 && amount >= p.Threshold {
		return p.BigAmount
	}
	return p.Base
}
