package setup

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/LavaJover/keksswap-rate-service/internal/app/background"
	"github.com/LavaJover/keksswap-rate-service/internal/config"
	"github.com/LavaJover/keksswap-rate-service/internal/delivery/http/handlers"
	"github.com/LavaJover/keksswap-rate-service/internal/delivery/http/middleware"
	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	infrastructure "github.com/LavaJover/keksswap-rate-service/internal/infrastructure/exchange_providers"
	publisher "github.com/LavaJover/keksswap-rate-service/internal/infrastructure/kafka"
	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/keksswap-rate-service/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const limiterCleanupSchedule = "@every 5m"

type Dependencies struct {
	Config      *config.RateConfig
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Metrics     *metrics.RateMetrics
	Provider    domain.TickerSource
	Publisher   domain.SnapshotPublisher
	Cache       *usecase.PriceCache
	Usecase     usecase.RateUsecase
	RateLimiter *middleware.RateLimiter
	Router      http.Handler
	Tasks       *background.BackgroundTasks
}

// InitializeDependencies builds the object graph. Nothing talks to the
// network until the first request or warm-up job.
func InitializeDependencies(cfg *config.RateConfig, log *slog.Logger) (*Dependencies, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rateMetrics := metrics.NewRateMetrics(registry)

	provider := infrastructure.NewWhitebitProvider(infrastructure.WhitebitConfig{
		BaseURL:      cfg.Upstream.BaseURL,
		TickerPath:   cfg.Upstream.TickerPath,
		UserAgent:    cfg.Upstream.UserAgent,
		Timeout:      cfg.Upstream.Timeout,
		HealthMarket: cfg.Pricing.FiatMarket,
	})

	quote, err := domain.ParseInstrument(cfg.Pricing.Quote)
	if err != nil {
		return nil, fmt.Errorf("pricing.quote: %w", err)
	}
	fiat, err := domain.ParseInstrument(cfg.Pricing.Fiat)
	if err != nil {
		return nil, fmt.Errorf("pricing.fiat: %w", err)
	}
	markets, err := instrumentMarkets(cfg.Pricing.Instruments)
	if err != nil {
		return nil, err
	}

	cacheOpts := []usecase.PriceCacheOption{
		usecase.WithCacheLogger(log),
		usecase.WithCacheMetrics(rateMetrics),
	}

	var snapshotPublisher domain.SnapshotPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := initSnapshotPublisher(cfg, fiat, provider.GetName())
		if err != nil {
			return nil, fmt.Errorf("snapshot publisher: %w", err)
		}
		snapshotPublisher = kafkaPublisher
		cacheOpts = append(cacheOpts, usecase.WithRefreshListener(
			publisher.AsyncListener(kafkaPublisher, cfg.Kafka.PublishTimeout, log, rateMetrics.RecordPublishError),
		))
	}

	cache := usecase.NewPriceCache(provider, usecase.PriceCacheConfig{
		QuoteInstrument: quote,
		FiatMarket:      cfg.Pricing.FiatMarket,
		Markets:         markets,
		TTL:             cfg.Cache.TTL,
		FetchTimeout:    cfg.Upstream.Timeout,
		RetryBackoff:    cfg.Cache.RetryBackoff,
	}, cacheOpts...)

	calculator := usecase.NewRateCalculator(
		fiat,
		provider.GetName(),
		domain.SpreadPolicy{
			Base:      cfg.Pricing.BaseSpread,
			BigAmount: cfg.Pricing.BigAmountSpread,
			Threshold: cfg.Pricing.BigAmountThreshold,
		},
		domain.FeeTable{
			Network:       domain.FeeSchedule(cfg.Pricing.NetworkExtra),
			PaymentMethod: domain.FeeSchedule(cfg.Pricing.BankExtra),
		},
	)
	rateUsecase := usecase.NewDefaultRateUsecase(cache, calculator, quote, fiat, rateMetrics, log)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Handler:        handlers.NewRateHandler(rateUsecase, log),
		FixedPairPath:  handlers.FixedPairPath(quote, fiat),
		Logger:         log,
		Metrics:        rateMetrics,
		Gatherer:       registry,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimiter:    limiter,
	})

	tasks := background.NewBackgroundTasks(log)
	if err := tasks.AddSnapshotWarmer(cfg.Cache.WarmSchedule, cache, cfg.Upstream.Timeout); err != nil {
		return nil, err
	}
	if limiter != nil {
		if err := tasks.AddLimiterCleanup(limiterCleanupSchedule, limiter); err != nil {
			return nil, err
		}
	}

	return &Dependencies{
		Config:      cfg,
		Logger:      log,
		Registry:    registry,
		Metrics:     rateMetrics,
		Provider:    provider,
		Publisher:   snapshotPublisher,
		Cache:       cache,
		Usecase:     rateUsecase,
		RateLimiter: limiter,
		Router:      router,
		Tasks:       tasks,
	}, nil
}

// Close releases the cache and the publisher. Call after the HTTP server
// and the background tasks have stopped.
func (d *Dependencies) Close() error {
	d.Cache.Close()
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			return fmt.Errorf("close snapshot publisher: %w", err)
		}
	}
	return nil
}

func instrumentMarkets(instruments map[string]string) (map[domain.Instrument]string, error) {
	markets := make(map[domain.Instrument]string, len(instruments))
	for code, market := range instruments {
		instrument, err := domain.ParseInstrument(code)
		if err != nil {
			return nil, fmt.Errorf("pricing.instruments: %w", err)
		}
		markets[instrument] = market
	}
	return markets, nil
}

func initSnapshotPublisher(cfg *config.RateConfig, fiat domain.Instrument, source string) (*publisher.KafkaSnapshotPublisher, error) {
	kafkaConfig := publisher.KafkaConfig{
		Brokers:    cfg.Kafka.Brokers,
		Topic:      cfg.Kafka.Topic,
		Username:   cfg.Kafka.Username,
		Password:   cfg.Kafka.Password,
		Mechanism:  cfg.Kafka.Mechanism,
		TLSEnabled: cfg.Kafka.TLSEnabled,
	}
	return publisher.NewKafkaSnapshotPublisher(kafkaConfig, fiat, source)
}
