package publisher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Username   string
	Password   string
	Mechanism  string // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	TLSEnabled bool
}

// SnapshotEvent is the wire form of a price snapshot.
type SnapshotEvent struct {
	Fiat       string             `json:"fiat"`
	FiatPrice  float64            `json:"fiat_price"`
	Prices     map[string]float64 `json:"prices"`
	Source     string             `json:"source"`
	CapturedAt time.Time          `json:"captured_at"`
}

func NewSnapshotEvent(snapshot *domain.PriceSnapshot, fiat domain.Instrument, source string) SnapshotEvent {
	prices := make(map[string]float64)
	for instrument, price := range snapshot.Prices() {
		prices[instrument.String()] = price
	}
	return SnapshotEvent{
		Fiat:       fiat.String(),
		FiatPrice:  snapshot.FiatPrice,
		Prices:     prices,
		Source:     source,
		CapturedAt: snapshot.CapturedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaSnapshotPublisher struct {
	writer messageWriter
	fiat   domain.Instrument
	source string
}

func NewKafkaSnapshotPublisher(cfg KafkaConfig, fiat domain.Instrument, source string) (*KafkaSnapshotPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	transport := &kafka.Transport{}
	if cfg.TLSEnabled {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.Username != "" {
		mechanism, err := saslMechanism(cfg)
		if err != nil {
			return nil, err
		}
		transport.SASL = mechanism
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		Transport:    transport,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaSnapshotPublisher(writer, fiat, source), nil
}

func newKafkaSnapshotPublisher(writer messageWriter, fiat domain.Instrument, source string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{
		writer: writer,
		fiat:   fiat,
		source: source,
	}
}

func saslMechanism(cfg KafkaConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "", "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported kafka SASL mechanism %q", cfg.Mechanism)
	}
}

func (k *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	msg, err := json.Marshal(NewSnapshotEvent(snapshot, k.fiat, k.source))
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.fiat.String()),
		Value: msg,
		Time:  snapshot.CapturedAt,
	})
}

func (k *KafkaSnapshotPublisher) Close() error {
	return k.writer.Close()
}

// AsyncListener adapts a publisher to a price cache refresh listener.
// Publishing runs in its own goroutine bounded by timeout; failures are
// logged and passed to onError.
func AsyncListener(p domain.SnapshotPublisher, timeout time.Duration, log *slog.Logger, onError func()) func(*domain.PriceSnapshot) {
	if log == nil {
		log = slog.Default()
	}
	return func(snapshot *domain.PriceSnapshot) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := p.PublishSnapshot(ctx, snapshot); err != nil {
				log.Error("failed to publish price snapshot",
					"error", err,
					"captured_at", snapshot.CapturedAt,
				)
				if onError != nil {
					onError()
				}
			}
		}()
	}
}
