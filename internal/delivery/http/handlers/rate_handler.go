package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/delivery/http/dto/rate/request"
	"github.com/LavaJover/keksswap-rate-service/internal/delivery/http/dto/rate/response"
	"github.com/LavaJover/keksswap-rate-service/internal/delivery/http/middleware"
	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/LavaJover/keksswap-rate-service/internal/usecase"
	"github.com/shopspring/decimal"
)

const (
	ratePrecision = 6

	msgRateUnavailable = "Rate unavailable"
	msgRateFailed      = "Failed to get rate"
	// StaleHeader marks quotes computed from a snapshot older than the TTL.
	StaleHeader = "X-Rate-Stale"
)

type RateHandler struct {
	uc  usecase.RateUsecase
	log *slog.Logger
	now func() time.Time
}

func NewRateHandler(uc usecase.RateUsecase, log *slog.Logger) *RateHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RateHandler{
		uc:  uc,
		log: log.With("component", "rate_handler"),
		now: time.Now,
	}
}

// GetRate serves GET /rate.
func (h *RateHandler) GetRate(w http.ResponseWriter, r *http.Request) {
	req, err := request.NewRateQuery(r.URL.Query()).ToDomain()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response.ErrorResponse{Error: err.Error()})
		return
	}

	quote, err := h.uc.GetRate(r.Context(), req)
	if err != nil {
		status, message := h.classify(r.Context(), err)
		writeJSON(w, status, response.ErrorResponse{Error: message})
		return
	}
	h.writeQuote(w, quote)
}

// GetFixedRate serves the fixed-pair route. Every failure is a 500 with a
// fixed body; the cause is only logged.
func (h *RateHandler) GetFixedRate(w http.ResponseWriter, r *http.Request) {
	quote, err := h.uc.GetFixedRate(r.Context())
	if err != nil {
		h.log.Error("fixed rate failed",
			"error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, response.ErrorResponse{Error: msgRateFailed})
		return
	}
	h.writeQuote(w, quote)
}

func (h *RateHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}

func (h *RateHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.uc.Status()

	resp := response.StatusResponse{
		TTLSeconds: status.TTL.Seconds(),
	}
	if snapshot := status.Snapshot; snapshot != nil {
		capturedAt := snapshot.CapturedAt.UnixMilli()
		age := snapshot.Age(h.now()).Seconds()
		resp.Ready = true
		resp.SnapshotAt = &capturedAt
		resp.AgeSeconds = &age
		resp.FiatPrice = snapshot.FiatPrice
		resp.Prices = make(map[string]float64)
		for instrument, price := range snapshot.Prices() {
			resp.Prices[instrument.String()] = price
		}
	}
	if !status.LastAttempt.IsZero() {
		attempted := status.LastAttempt.UnixMilli()
		resp.LastAttempt = &attempted
	}
	if status.LastError != nil {
		resp.LastError = status.LastError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RateHandler) classify(ctx context.Context, err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCacheUnavailable):
		return http.StatusServiceUnavailable, msgRateUnavailable
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownInstrument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidPrice):
		h.log.Error("invalid upstream price",
			"error", err,
			"request_id", middleware.RequestIDFromContext(ctx),
		)
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgRateUnavailable
	default:
		h.log.Error("rate request failed",
			"error", err,
			"request_id", middleware.RequestIDFromContext(ctx),
		)
		return http.StatusInternalServerError, msgRateFailed
	}
}

func (h *RateHandler) writeQuote(w http.ResponseWriter, quote domain.RateQuote) {
	if quote.Stale {
		w.Header().Set(StaleHeader, "true")
	}
	writeJSON(w, http.StatusOK, response.RateResponse{
		Rate:   roundRate(quote.Rate),
		Source: quote.Source,
		Ts:     quote.Timestamp.UnixMilli(),
	})
}

func roundRate(rate float64) float64 {
	return decimal.NewFromFloat(rate).Round(ratePrecision).InexactFloat64()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
