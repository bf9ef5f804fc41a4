// internal/domain/price_source.go
package domain

import "context"

// TickerSource is the upstream market-data provider.
type TickerSource interface {
	GetTicker(ctx context.Context, market string) (float64, error)
	GetName() string
	IsHealthy(ctx context.Context) bool
}

// SnapshotPublisher receives every snapshot installed by the price cache.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot *PriceSnapshot) error
	Close() error
}
