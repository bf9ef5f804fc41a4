package usecase

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errUpstreamDown = errors.New("upstream down")

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	reads int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	return c.now
}

// Reads reports how many times Now was called.
func (c *fakeClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTickerSource serves fixed prices and counts calls per market. When
// gate is set every call blocks until it is closed, ignoring the context.
type fakeTickerSource struct {
	mu      sync.Mutex
	prices  map[string]float64
	failing map[string]error
	calls   map[string]int
	hanging map[string]bool
	gate    chan struct{}
}

func newFakeTickerSource() *fakeTickerSource {
	return &fakeTickerSource{
		prices: map[string]float64{
			"USDT_UAH": 41,
			"TON_USDT": 5,
			"BTC_USDT": 60000,
			"ETH_USDT": 3000,
		},
		failing: make(map[string]error),
		calls:   make(map[string]int),
		hanging: make(map[string]bool),
	}
}

func (f *fakeTickerSource) GetTicker(ctx context.Context, market string) (float64, error) {
	f.mu.Lock()
	f.calls[market]++
	gate := f.gate
	hanging := f.hanging[market]
	f.mu.Unlock()

	if hanging {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[market]; ok {
		return 0, err
	}
	price, ok := f.prices[market]
	if !ok {
		return 0, errors.New("unknown market " + market)
	}
	return price, nil
}

func (f *fakeTickerSource) GetName() string { return "whitebit" }

func (f *fakeTickerSource) IsHealthy(ctx context.Context) bool { return true }

func (f *fakeTickerSource) setPrice(market string, price float64) {
	f.mu.Lock()
	f.prices[market] = price
	f.mu.Unlock()
}

func (f *fakeTickerSource) fail(market string, err error) {
	f.mu.Lock()
	f.failing[market] = err
	f.mu.Unlock()
}

// hang makes calls for market wait until their context is done.
func (f *fakeTickerSource) hang(market string) {
	f.mu.Lock()
	f.hanging[market] = true
	f.mu.Unlock()
}

func (f *fakeTickerSource) heal(market string) {
	f.mu.Lock()
	delete(f.failing, market)
	f.mu.Unlock()
}

func (f *fakeTickerSource) block() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeTickerSource) callsFor(market string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[market]
}

func (f *fakeTickerSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
