package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/keksswap-rate-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

func testSnapshot() *domain.PriceSnapshot {
	return domain.NewPriceSnapshot(map[domain.Instrument]float64{
		domain.USDT: 1,
		domain.TON:  5,
	}, 41, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestKafkaSnapshotPublisher_PublishSnapshot(t *testing.T) {
	writer := &recordingWriter{}
	p := newKafkaSnapshotPublisher(writer, domain.UAH, "whitebit")

	require.NoError(t, p.PublishSnapshot(context.Background(), testSnapshot()))
	require.Len(t, writer.msgs, 1)

	msg := writer.msgs[0]
	assert.Equal(t, "UAH", string(msg.Key))
	assert.Equal(t, testSnapshot().CapturedAt, msg.Time)

	var event SnapshotEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "UAH", event.Fiat)
	assert.Equal(t, 41.0, event.FiatPrice)
	assert.Equal(t, map[string]float64{"USDT": 1, "TON": 5}, event.Prices)
	assert.Equal(t, "whitebit", event.Source)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestAsyncListener_ReportsFailures(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	p := newKafkaSnapshotPublisher(writer, domain.UAH, "whitebit")

	failed := make(chan struct{}, 1)
	listener := AsyncListener(p, time.Second, nil, func() { failed <- struct{}{} })
	listener(testSnapshot())

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("publish failure was not reported")
	}
}

func TestAsyncListener_Publishes(t *testing.T) {
	writer := &recordingWriter{}
	p := newKafkaSnapshotPublisher(writer, domain.UAH, "whitebit")

	AsyncListener(p, time.Second, nil, nil)(testSnapshot())
	require.Eventually(t, func() bool { return writer.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestNewKafkaSnapshotPublisher_Validation(t *testing.T) {
	_, err := NewKafkaSnapshotPublisher(KafkaConfig{Topic: "rates"}, domain.UAH, "whitebit")
	assert.Error(t, err)

	_, err = NewKafkaSnapshotPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, domain.UAH, "whitebit")
	assert.Error(t, err)

	_, err = NewKafkaSnapshotPublisher(KafkaConfig{
		Brokers: []string{"localhost:9092"}, Topic: "rates", Username: "u", Password: "p", Mechanism: "GSSAPI",
	}, domain.UAH, "whitebit")
	assert.Error(t, err)

	p, err := NewKafkaSnapshotPublisher(KafkaConfig{
		Brokers: []string{"localhost:9092"}, Topic: "rates", Username: "u", Password: "p", Mechanism: "SCRAM-SHA-512",
	}, domain.UAH, "whitebit")
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
