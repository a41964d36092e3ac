//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/adapter/kafka"
	"github.com/couchcryptid/heat-stress-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/heat-stress-etl/internal/config"
	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/pipeline"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

var msgTime = time.Date(2024, time.July, 15, 14, 2, 0, 0, time.UTC)

// transformedMessage holds a deserialized message read from the sink topic.
type transformedMessage struct {
	Event   domain.StationEvent
	Key     string
	Headers map[string]string
}

// readTransformed reads a single message from the sink consumer and deserializes it.
func readTransformed(ctx context.Context, t *testing.T, consumer *kafkago.Reader) transformedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.StationEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal sink message")

	return transformedMessage{
		Event:   event,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		BatchFlushInterval: 5 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func newTransformer(metrics *observability.Metrics) *pipeline.StationTransformer {
	return pipeline.NewTransformer(thermal.NewEngine(nil), nil, discardLogger(), metrics)
}

// TestKafkaReaderWriter verifies the adapter layer: kafka.Reader (Extractor) and
// kafka.Writer (Loader) correctly round-trip a message through Kafka.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-reader")

	records := loadMockData(t)
	record := records[0] // UNI-PARK: 35 °C, 40 %, 3 m/s, 800 W/m²
	payload, err := json.Marshal(record)
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(record.StationID),
		Value: payload,
		Time:  msgTime,
	}))

	// Retry because the consumer group may need time to rebalance before
	// partitions are assigned and messages become available.
	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	var batch []domain.RawEvent
	for {
		var err error
		batch, err = reader.ExtractBatch(ctx, 1)
		require.NoError(t, err)
		if len(batch) > 0 {
			break
		}
		if ctx.Err() != nil {
			t.Fatal("timed out waiting for message from source topic")
		}
	}
	require.Len(t, batch, 1)
	raw := batch[0]
	assert.Equal(t, []byte("UNI-PARK"), raw.Key)
	assert.Equal(t, payload, raw.Value)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	event, err := newTransformer(observability.NewMetricsForTesting()).Transform(ctx, raw)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.LoadBatch(ctx, []domain.StationEvent{event}))

	tm := readTransformed(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, event.ID, tm.Key)
	assert.Equal(t, "UNI-PARK", tm.Headers["station_id"])
	assert.Equal(t, "Very strong heat stress", tm.Headers["utci_stress"])
	_, err = time.Parse(time.RFC3339, tm.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	require.NotNil(t, tm.Event.Indices.UTCI)
	assert.InDelta(t, 42.0, *tm.Event.Indices.UTCI, 1e-9)
	assert.InDelta(t, 37.2, *tm.Event.Indices.HeatIndex, 1e-9)
	assert.Equal(t, thermal.ExtremeCaution, tm.Event.Indices.HeatIndexStress)
}

// TestPipelineEndToEnd wires the full pipeline (Reader → Transformer → Kafka
// and SQLite) with real Kafka and verifies every fixture reading.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-pipeline")

	records := loadMockData(t)
	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{Key: []byte(rec.StationID), Value: payload, Time: msgTime})
	}
	require.NoError(t, producer.WriteMessages(ctx, msgs...))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	store, err := sqlite.Open(":memory:", discardLogger(), metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	loader := pipeline.NewFanOutLoader("kafka", writer).Add("sqlite", store)
	p := pipeline.New(reader, newTransformer(metrics), loader, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	received := make(map[string]transformedMessage, len(records))
	for len(received) < len(records) {
		tm := readTransformed(ctx, t, consumer)
		received[tm.Event.StationID] = tm
	}

	pipelineCancel()
	require.NoError(t, <-errCh)
	require.NoError(t, p.CheckReadiness(ctx))

	for id, tm := range received {
		assert.Equal(t, id, tm.Headers["station_id"])
		assert.Equal(t, "2024-07-15T14:00:00Z", tm.Event.TimeBucket)
		_, err := time.Parse(time.RFC3339, tm.Headers["processed_at"])
		assert.NoError(t, err, "invalid processed_at format")
	}

	hatfield := received["HATFIELD"].Event
	require.NotNil(t, hatfield.Indices.UTCI)
	assert.InDelta(t, 35.8, *hatfield.Indices.UTCI, 1e-9)
	assert.Equal(t, thermal.StrongHeatStress, hatfield.Indices.UTCIStress)

	mamelodi := received["MAMELODI"].Event
	assert.False(t, mamelodi.Indices.Available())
	assert.Contains(t, mamelodi.IndexError, "relative humidity")

	summaries, err := store.MonthlySummaries(ctx, msgTime)
	require.NoError(t, err)
	assert.Len(t, summaries, len(records))
}

// TestPipelineTransformError verifies that an invalid message (poison pill) is
// skipped and the pipeline continues processing valid messages.
func TestPipelineTransformError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)
	cfg := testConfig(broker, "test-poison")

	records := loadMockData(t)
	validPayload, err := json.Marshal(records[0])
	require.NoError(t, err)

	producer := &kafkago.Writer{
		Addr:  kafkago.TCP(broker),
		Topic: testSourceTopic,
	}
	t.Cleanup(func() { _ = producer.Close() })

	require.NoError(t, producer.WriteMessages(ctx,
		kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{"), Time: msgTime},
		kafkago.Message{Key: []byte("no-station"), Value: []byte(`{"air_temperature_c":30}`), Time: msgTime},
		kafkago.Message{Key: []byte("good"), Value: validPayload, Time: msgTime},
	))

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(reader, newTransformer(metrics), writer, discardLogger(), metrics, 50)

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	consumer := sinkConsumer(t, broker)
	tm := readTransformed(ctx, t, consumer)
	assert.Equal(t, "UNI-PARK", tm.Event.StationID)

	// Verify no second message arrives (the poison pills were skipped).
	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no second message on sink topic")

	pipelineCancel()
	require.NoError(t, <-errCh)
}
