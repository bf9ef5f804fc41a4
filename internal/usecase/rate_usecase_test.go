package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateUsecase(t *testing.T, source *fakeTickerSource, clock *fakeClock) (*DefaultRateUsecase, *metrics.RateMetrics) {
	t.Helper()
	m := metrics.NewRateMetrics(prometheus.NewRegistry())
	cache := newTestCache(t, source, clock, WithCacheMetrics(m))
	uc := NewDefaultRateUsecase(cache, newTestCalculator(), domain.USDT, domain.UAH, m, nil)
	return uc, m
}

func TestRateUsecase_GetRate(t *testing.T) {
	uc, m := newTestRateUsecase(t, newFakeTickerSource(), newFakeClock())

	quote, err := uc.GetRate(context.Background(), domain.RateRequest{
		From: domain.TON, To: domain.UAH, Network: "TRC20", PaymentMethod: "mono", Amount: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 206.64, quote.Rate, epsilon)
	assert.False(t, quote.Stale)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotesTotal.WithLabelValues("TON", "UAH", "ok")))
}

func TestRateUsecase_UnavailableWithoutSnapshot(t *testing.T) {
	source := newFakeTickerSource()
	source.fail("USDT_UAH", errUpstreamDown)
	uc, m := newTestRateUsecase(t, source, newFakeClock())

	quote, err := uc.GetRate(context.Background(), domain.RateRequest{From: domain.USDT, To: domain.UAH})
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	assert.Zero(t, quote.Rate)

	_, err = uc.GetFixedRate(context.Background())
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuotesTotal.WithLabelValues(anyPair, anyPair, "unavailable")))
}

func TestRateUsecase_ServesStaleOnRefreshFailure(t *testing.T) {
	source := newFakeTickerSource()
	clock := newFakeClock()
	uc, _ := newTestRateUsecase(t, source, clock)

	fresh, err := uc.GetFixedRate(context.Background())
	require.NoError(t, err)
	require.False(t, fresh.Stale)

	clock.Advance(30 * time.Second)
	source.setPrice("USDT_UAH", 50)
	source.fail("ETH_USDT", errUpstreamDown)

	stale, err := uc.GetFixedRate(context.Background())
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, 41.0, stale.Rate)
	assert.Equal(t, fresh.SnapshotAt, stale.SnapshotAt)
}

func TestRateUsecase_FixedRateIgnoresFees(t *testing.T) {
	uc, _ := newTestRateUsecase(t, newFakeTickerSource(), newFakeClock())

	quote, err := uc.GetFixedRate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 41.0, quote.Rate)
	assert.Equal(t, "whitebit", quote.Source)
}

func TestRateUsecase_UnknownInstrument(t *testing.T) {
	uc, m := newTestRateUsecase(t, newFakeTickerSource(), newFakeClock())

	_, err := uc.GetRate(context.Background(), domain.RateRequest{From: "DOGE", To: domain.UAH})
	assert.ErrorIs(t, err, domain.ErrUnknownInstrument)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuotesTotal.WithLabelValues(anyPair, anyPair, "rejected")))
}
