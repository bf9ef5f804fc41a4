package domain

import "strings"

// Instrument is an asset or fiat currency code, e.g. USDT, TON, UAH.
type Instrument string

const (
	USDT Instrument = "USDT"
	TON  Instrument = "TON"
	BTC  Instrument = "BTC"
	ETH  Instrument = "ETH"
	UAH  Instrument = "UAH"
)

// ParseInstrument normalizes a user supplied code. An empty code is invalid.
func ParseInstrument(code string) (Instrument, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrInvalidRequest
	}
	return Instrument(code), nil
}

func (i Instrument) String() string {
	return string(i)
}
