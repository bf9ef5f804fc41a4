// internal/usecase/price_cache.go
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey = "refresh"

	defaultCacheTTL     = 10 * time.Second
	defaultFetchTimeout = 5 * time.Second
	defaultRetryBackoff = time.Second
)

type PriceCacheConfig struct {
	// QuoteInstrument is the common quote unit; its price is always 1.
	QuoteInstrument domain.Instrument
	// FiatMarket is the upstream market giving quote unit -> fiat.
	FiatMarket string
	// Markets maps every priced instrument to its upstream market symbol.
	Markets      map[domain.Instrument]string
	TTL          time.Duration
	FetchTimeout time.Duration
	RetryBackoff time.Duration
}

type PriceCacheOption func(*PriceCache)

func WithClock(now func() time.Time) PriceCacheOption {
	return func(c *PriceCache) {
		c.now = now
	}
}

func WithCacheLogger(log *slog.Logger) PriceCacheOption {
	return func(c *PriceCache) {
		c.log = log
	}
}

func WithCacheMetrics(m *metrics.RateMetrics) PriceCacheOption {
	return func(c *PriceCache) {
		c.metrics = m
	}
}

// WithRefreshListener registers fn to be called with every installed snapshot.
// Listeners run synchronously after the state is replaced and must not block.
func WithRefreshListener(fn func(*domain.PriceSnapshot)) PriceCacheOption {
	return func(c *PriceCache) {
		c.listeners = append(c.listeners, fn)
	}
}

type cacheState struct {
	snapshot    *domain.PriceSnapshot
	attemptedAt time.Time
	lastErr     error
}

// CacheStatus is a read-only view of the cache for diagnostics.
type CacheStatus struct {
	Snapshot    *domain.PriceSnapshot
	LastAttempt time.Time
	LastError   error
	TTL         time.Duration
}

// PriceCache keeps the latest upstream prices. A refresh is triggered lazily
// by EnsureFresh once the snapshot is older than the TTL; concurrent callers
// share one in-flight refresh.
type PriceCache struct {
	source      domain.TickerSource
	cfg         PriceCacheConfig
	instruments []domain.Instrument
	now         func() time.Time
	log         *slog.Logger
	metrics     *metrics.RateMetrics
	listeners   []func(*domain.PriceSnapshot)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	state  cacheState
	flight singleflight.Group
}

func NewPriceCache(source domain.TickerSource, cfg PriceCacheConfig, opts ...PriceCacheOption) *PriceCache {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.QuoteInstrument == "" {
		cfg.QuoteInstrument = domain.USDT
	}

	instruments := make([]domain.Instrument, 0, len(cfg.Markets))
	for instrument := range cfg.Markets {
		instruments = append(instruments, instrument)
	}
	sort.Slice(instruments, func(i, j int) bool { return instruments[i] < instruments[j] })

	ctx, cancel := context.WithCancel(context.Background())
	c := &PriceCache{
		source:      source,
		cfg:         cfg,
		instruments: instruments,
		now:         time.Now,
		log:         slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "price_cache")
	return c
}

// EnsureFresh returns a snapshot no older than the TTL, refreshing it from
// the upstream when needed.
//
// When the refresh fails and an older snapshot exists, that snapshot is
// returned together with the *domain.UpstreamFetchError. Without any
// snapshot the error also matches domain.ErrCacheUnavailable.
func (c *PriceCache) EnsureFresh(ctx context.Context) (*domain.PriceSnapshot, error) {
	if snapshot, ok, err := c.lookup(); ok {
		return snapshot, err
	}

	ch := c.flight.DoChan(refreshKey, func() (interface{}, error) {
		// a refresh may have completed between lookup and DoChan
		if snapshot, ok, err := c.lookup(); ok {
			return snapshot, err
		}
		return c.refresh()
	})

	select {
	case res := <-ch:
		snapshot, _ := res.Val.(*domain.PriceSnapshot)
		return snapshot, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot returns the current snapshot without refreshing. Nil before the
// first successful refresh.
func (c *PriceCache) Snapshot() *domain.PriceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.snapshot
}

func (c *PriceCache) Status() CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStatus{
		Snapshot:    c.state.snapshot,
		LastAttempt: c.state.attemptedAt,
		LastError:   c.state.lastErr,
		TTL:         c.cfg.TTL,
	}
}

func (c *PriceCache) TTL() time.Duration {
	return c.cfg.TTL
}

// Close aborts an in-flight refresh. Later refreshes fail.
func (c *PriceCache) Close() {
	c.cancel()
}

// lookup answers from the current state when no upstream call is needed:
// the snapshot is fresh, or the last refresh failed within the retry backoff.
func (c *PriceCache) lookup() (*domain.PriceSnapshot, bool, error) {
	now := c.now()

	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	if state.snapshot != nil {
		if age := state.snapshot.Age(now); age < c.cfg.TTL {
			c.metrics.RecordCacheHit(age)
			return state.snapshot, true, nil
		}
	}
	if state.lastErr != nil && now.Sub(state.attemptedAt) < c.cfg.RetryBackoff {
		return state.snapshot, true, c.failure(state.snapshot, state.lastErr)
	}
	return nil, false, nil
}

func (c *PriceCache) refresh() (*domain.PriceSnapshot, error) {
	startedAt := c.now()
	began := time.Now()

	var fiatPrice float64
	prices := make([]float64, len(c.instruments))

	g, ctx := errgroup.WithContext(c.ctx)
	g.Go(func() error {
		price, err := c.fetch(ctx, c.cfg.FiatMarket)
		fiatPrice = price
		return err
	})
	for i, instrument := range c.instruments {
		market := c.cfg.Markets[instrument]
		g.Go(func() error {
			price, err := c.fetch(ctx, market)
			prices[i] = price
			return err
		})
	}

	if err := g.Wait(); err != nil {
		c.metrics.RecordRefresh(false, time.Since(began))

		c.mu.Lock()
		c.state.attemptedAt = c.now()
		c.state.lastErr = err
		stale := c.state.snapshot
		c.mu.Unlock()

		c.log.Warn("price cache refresh failed", "error", err, "stale", stale != nil)
		return stale, c.failure(stale, err)
	}

	byInstrument := make(map[domain.Instrument]float64, len(prices)+1)
	for i, instrument := range c.instruments {
		byInstrument[instrument] = prices[i]
	}
	byInstrument[c.cfg.QuoteInstrument] = 1
	snapshot := domain.NewPriceSnapshot(byInstrument, fiatPrice, startedAt)

	c.mu.Lock()
	c.state = cacheState{
		snapshot:    snapshot,
		attemptedAt: startedAt,
	}
	c.mu.Unlock()

	c.metrics.RecordRefresh(true, time.Since(began))
	c.metrics.RecordSnapshotAge(0)
	c.log.Debug("price cache refreshed",
		"fiat_price", fiatPrice,
		"instruments", len(c.instruments),
		"duration", time.Since(began),
	)

	for _, listener := range c.listeners {
		listener(snapshot)
	}
	return snapshot, nil
}

type tickerResult struct {
	price float64
	err   error
}

// fetch bounds a single ticker call by FetchTimeout even if the source
// ignores its context.
//
// Errors of fetches aborted because a sibling failed (or the cache closed)
// are not counted against their market.
func (c *PriceCache) fetch(group context.Context, market string) (float64, error) {
	ctx, cancel := context.WithTimeout(group, c.cfg.FetchTimeout)
	defer cancel()

	done := make(chan tickerResult, 1)
	go func() {
		price, err := c.source.GetTicker(ctx, market)
		done <- tickerResult{price: price, err: err}
	}()

	var res tickerResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err == nil && (res.price <= 0 || math.IsNaN(res.price) || math.IsInf(res.price, 0)) {
		res.err = fmt.Errorf("%w: %v", domain.ErrInvalidPrice, res.price)
	}
	if res.err != nil {
		if group.Err() == nil {
			c.metrics.RecordUpstreamError(market)
		}
		return 0, &domain.UpstreamFetchError{Market: market, Err: res.err}
	}
	return res.price, nil
}

func (c *PriceCache) failure(stale *domain.PriceSnapshot, err error) error {
	if stale == nil {
		return fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return err
}
