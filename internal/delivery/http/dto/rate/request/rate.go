package request

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	DefaultFrom    = "USDT"
	DefaultTo      = "UAH"
	DefaultNetwork = "TRC20"
	DefaultBank    = "mono"
)

// RateQuery is the raw query of GET /rate.
type RateQuery struct {
	From    string
	To      string
	Network string
	Bank    string
	Amount  string
}

func NewRateQuery(values url.Values) RateQuery {
	return RateQuery{
		From:    valueOr(values, "from", DefaultFrom),
		To:      valueOr(values, "to", DefaultTo),
		Network: valueOr(values, "net", DefaultNetwork),
		Bank:    valueOr(values, "bank", DefaultBank),
		Amount:  strings.TrimSpace(values.Get("amount")),
	}
}

// ToDomain validates the query. Every failure matches domain.ErrInvalidRequest.
func (q RateQuery) ToDomain() (domain.RateRequest, error) {
	from, err := domain.ParseInstrument(q.From)
	if err != nil {
		return domain.RateRequest{}, fmt.Errorf("from: %w", err)
	}
	to, err := domain.ParseInstrument(q.To)
	if err != nil {
		return domain.RateRequest{}, fmt.Errorf("to: %w", err)
	}

	amount, err := parseAmount(q.Amount)
	if err != nil {
		return domain.RateRequest{}, err
	}

	return domain.RateRequest{
		From:          from,
		To:            to,
		Network:       strings.TrimSpace(q.Network),
		PaymentMethod: strings.TrimSpace(q.Bank),
		Amount:        amount,
	}, nil
}

func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	// decimal rejects NaN and Inf literals
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", domain.ErrInvalidRequest, raw)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: amount %q is negative", domain.ErrInvalidRequest, raw)
	}
	amount := d.InexactFloat64()
	if math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount %q is out of range", domain.ErrInvalidRequest, raw)
	}
	return amount, nil
}

func valueOr(values url.Values, key, fallback string) string {
	if v := strings.TrimSpace(values.Get(key)); v != "" {
		return v
	}
	return fallback
}
