package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/LavaJover/keksswap-rate-service/internal/delivery/http/middleware"
	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/LavaJover/keksswap-rate-service/internal/infrastructure/metrics"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Handler *RateHandler
	// FixedPairPath serves the configured quote->fiat pair, see FixedPairPath.
	FixedPairPath  string
	Logger         *slog.Logger
	Metrics        *metrics.RateMetrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	// RateLimiter is optional; nil disables limiting.
	RateLimiter *middleware.RateLimiter
}

// FixedPairPath names the fixed-pair route after the pair it serves,
// e.g. /rate/usdt_uah.
func FixedPairPath(quote, fiat domain.Instrument) string {
	return "/rate/" + strings.ToLower(quote.String()) + "_" + strings.ToLower(fiat.String())
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(cfg.Logger))
	router.Use(middleware.Metrics(cfg.Metrics))

	router.HandleFunc("/health", cfg.Handler.Health).Methods(http.MethodGet)
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := router.NewRoute().Subrouter()
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Handler)
	}
	api.HandleFunc("/rate", cfg.Handler.GetRate).Methods(http.MethodGet)
	fixedPath := cfg.FixedPairPath
	if fixedPath == "" {
		fixedPath = FixedPairPath(domain.USDT, domain.UAH)
	}
	api.HandleFunc(fixedPath, cfg.Handler.GetFixedRate).Methods(http.MethodGet)
	api.HandleFunc("/status", cfg.Handler.Status).Methods(http.MethodGet)

	return middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler(router)
}
