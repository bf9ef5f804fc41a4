// internal/usecase/rate_usecase.go
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/metrics"
)

// anyPair labels quotes that failed before the pair was validated, keeping
// metric cardinality bounded by the configured instruments.
const anyPair = "*"

type RateUsecase interface {
	GetRate(ctx context.Context, req domain.RateRequest) (domain.RateQuote, error)
	GetFixedRate(ctx context.Context) (domain.RateQuote, error)
	Status() CacheStatus
}

type DefaultRateUsecase struct {
	cache      *PriceCache
	calculator *RateCalculator
	fixed      *RateCalculator
	fixedPair  domain.RateRequest
	metrics    *metrics.RateMetrics
	log        *slog.Logger
}

// NewDefaultRateUsecase wires the cache to the featureful calculator and to
// the fixed quote->fiat pair served without spread or fees.
func NewDefaultRateUsecase(
	cache *PriceCache,
	calculator *RateCalculator,
	quote, fiat domain.Instrument,
	m *metrics.RateMetrics,
	log *slog.Logger,
) *DefaultRateUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &DefaultRateUsecase{
		cache:      cache,
		calculator: calculator,
		fixed:      NewFixedPairCalculator(fiat, calculator.source),
		fixedPair:  domain.RateRequest{From: quote, To: fiat},
		metrics:    m,
		log:        log.With("component", "rate_usecase"),
	}
}

func (uc *DefaultRateUsecase) GetRate(ctx context.Context, req domain.RateRequest) (domain.RateQuote, error) {
	return uc.quote(ctx, uc.calculator, req)
}

func (uc *DefaultRateUsecase) GetFixedRate(ctx context.Context) (domain.RateQuote, error) {
	return uc.quote(ctx, uc.fixed, uc.fixedPair)
}

func (uc *DefaultRateUsecase) Status() CacheStatus {
	return uc.cache.Status()
}

func (uc *DefaultRateUsecase) quote(ctx context.Context, calculator *RateCalculator, req domain.RateRequest) (domain.RateQuote, error) {
	snapshot, err := uc.cache.EnsureFresh(ctx)
	stale := false
	if err != nil {
		var upstreamErr *domain.UpstreamFetchError
		if snapshot == nil || !errors.As(err, &upstreamErr) {
			uc.metrics.RecordQuote(anyPair, anyPair, "unavailable")
			return domain.RateQuote{}, err
		}
		// отдаём устаревший снапшот вместо ошибки
		stale = true
		uc.log.Warn("serving stale snapshot",
			"error", err,
			"snapshot_age", time.Since(snapshot.CapturedAt),
		)
	}

	quote, err := calculator.Quote(req, snapshot)
	if err != nil {
		uc.metrics.RecordQuote(anyPair, anyPair, "rejected")
		return domain.RateQuote{}, err
	}
	quote.Stale = stale

	uc.metrics.RecordQuote(req.From.String(), req.To.String(), "ok")
	return quote, nil
}
