// internal/usecase/rate_calculator.go
package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
)

// RateCalculator turns a price snapshot into a fee-adjusted quote. It holds
// no mutable state: Quote is a pure function of its arguments and the
// calculator's pricing model.
type RateCalculator struct {
	fiat   domain.Instrument
	source string
	spread domain.SpreadPolicy
	fees   domain.FeeTable
	now    func() time.Time
}

func NewRateCalculator(fiat domain.Instrument, source string, spread domain.SpreadPolicy, fees domain.FeeTable) *RateCalculator {
	return &RateCalculator{
		fiat:   fiat,
		source: source,
		spread: spread,
		fees:   fees,
		now:    time.Now,
	}
}

// NewFixedPairCalculator builds the calculator behind the fixed-pair
// endpoint: identity spread and no fee layers.
func NewFixedPairCalculator(fiat domain.Instrument, source string) *RateCalculator {
	return NewRateCalculator(fiat, source, domain.SpreadPolicy{}, domain.FeeTable{})
}

func (c *RateCalculator) Quote(req domain.RateRequest, snapshot *domain.PriceSnapshot) (domain.RateQuote, error) {
	if snapshot == nil {
		return domain.RateQuote{}, domain.ErrCacheUnavailable
	}

	rate, err := c.baseRate(req.From, req.To, snapshot)
	if err != nil {
		return domain.RateQuote{}, err
	}

	// спред
	rate *= 1 + c.spread.Fraction(req.Amount)
	// сеть
	rate *= c.fees.Network.Multiplier(req.Network)
	// банк
	rate *= c.fees.PaymentMethod.Multiplier(req.PaymentMethod)

	if !usable(rate) {
		return domain.RateQuote{}, fmt.Errorf("%w: %s->%s rate %v", domain.ErrInvalidPrice, req.From, req.To, rate)
	}

	return domain.RateQuote{
		Rate:       rate,
		Source:     c.source,
		Timestamp:  c.now(),
		SnapshotAt: snapshot.CapturedAt,
	}, nil
}

func (c *RateCalculator) baseRate(from, to domain.Instrument, snapshot *domain.PriceSnapshot) (float64, error) {
	switch {
	// crypto -> fiat
	case to == c.fiat:
		price, err := priceOf(snapshot, from)
		if err != nil {
			return 0, err
		}
		return price * snapshot.FiatPrice, nil
	// fiat -> crypto
	case from == c.fiat:
		price, err := priceOf(snapshot, to)
		if err != nil {
			return 0, err
		}
		denominator := price * snapshot.FiatPrice
		if !usable(denominator) {
			return 0, fmt.Errorf("%w: %s in %s is %v", domain.ErrInvalidPrice, to, c.fiat, denominator)
		}
		return 1 / denominator, nil
	// crypto -> crypto
	default:
		fromPrice, err := priceOf(snapshot, from)
		if err != nil {
			return 0, err
		}
		toPrice, err := priceOf(snapshot, to)
		if err != nil {
			return 0, err
		}
		return fromPrice / toPrice, nil
	}
}

func priceOf(snapshot *domain.PriceSnapshot, instrument domain.Instrument) (float64, error) {
	price, ok := snapshot.Price(instrument)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownInstrument, instrument)
	}
	if !usable(price) {
		return 0, fmt.Errorf("%w: %s price %v", domain.ErrInvalidPrice, instrument, price)
	}
	return price, nil
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
