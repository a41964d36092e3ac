// Package mqtt adapts an MQTT station telemetry topic to the pipeline's
// BatchExtractor interface.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/config"
	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// ErrStopped is returned once Disconnect has been called.
var ErrStopped = errors.New("mqtt subscriber stopped")

// Subscriber receives station readings from an MQTT topic and buffers them
// for the pipeline. It implements pipeline.BatchExtractor.
type Subscriber struct {
	client        paho.Client
	broker        string
	topic         string
	flushInterval time.Duration
	logger        *slog.Logger

	mu        sync.RWMutex
	connected bool

	queue          chan domain.RawEvent
	subscribed     chan struct{}
	subscribedOnce sync.Once
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewSubscriber configures an MQTT client for the station topic. No
// connection is made until Connect.
func NewSubscriber(cfg *config.Config, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		broker:        fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort),
		topic:         cfg.MQTTTopic,
		flushInterval: cfg.BatchFlushInterval,
		logger:        logger,
		queue:         make(chan domain.RawEvent, cfg.MQTTQueueSize),
		subscribed:    make(chan struct{}),
		stopCh:        make(chan struct{}),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c paho.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", s.broker)
		// Clean sessions drop subscriptions on reconnect.
		if err := s.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", "topic", s.topic, "error", err)
			return
		}
		s.subscribedOnce.Do(func() { close(s.subscribed) })
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = paho.NewClient(opts)
	return s
}

// Connect establishes the broker connection and waits for the first
// subscription. The subscription is made by the on-connect handler, so it
// survives reconnects.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return ErrStopped
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	select {
	case <-s.subscribed:
		return nil
	case <-ctx.Done():
		s.client.Disconnect(0)
		return ctx.Err()
	case <-s.stopCh:
		return ErrStopped
	}
}

func (s *Subscriber) subscribe(c paho.Client) error {
	const qos = byte(1)
	token := c.Subscribe(s.topic, qos, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	s.logger.Info("subscribed to mqtt topic", "topic", s.topic, "qos", qos)
	return nil
}

// handleMessage queues a payload. Unparseable or unkeyed payloads are
// dropped here since MQTT has no offset to commit past.
func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	var rec domain.RawStationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.Warn("failed to parse station message", "topic", topic, "error", err)
		return
	}
	if err := validateRecord(rec); err != nil {
		s.logger.Warn("invalid station message", "topic", topic, "station_id", rec.StationID, "error", err)
		return
	}

	raw := domain.RawEvent{
		Key:       []byte(rec.StationID),
		Value:     payload,
		Headers:   map[string]string{"mqtt_topic": topic},
		Topic:     topic,
		Timestamp: time.Now().UTC(),
	}

	select {
	case s.queue <- raw:
	case <-s.stopCh:
	default:
		s.logger.Warn("mqtt queue full, dropping message", "topic", topic, "station_id", rec.StationID)
	}
}

// validateRecord rejects records the pipeline cannot key. Out-of-range
// readings pass through; the engine marks their indices unavailable.
func validateRecord(r domain.RawStationRecord) error {
	if strings.TrimSpace(r.StationID) == "" {
		return domain.ErrMissingStationID
	}
	return nil
}

// ExtractBatch blocks until a reading is queued, then collects up to
// batchSize readings or until the flush interval elapses.
func (s *Subscriber) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	batch := make([]domain.RawEvent, 0, batchSize)

	select {
	case raw := <-s.queue:
		batch = append(batch, raw)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCh:
		return nil, ErrStopped
	}

	timer := time.NewTimer(s.flushInterval)
	defer timer.Stop()

	for len(batch) < batchSize {
		select {
		case raw := <-s.queue:
			batch = append(batch, raw)
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return batch, nil
		}
	}
	return batch, nil
}

// IsConnected reports whether the broker connection is up.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Close stops the subscriber and disconnects from the broker. Safe to call
// more than once.
func (s *Subscriber) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.IsConnected() {
		token := s.client.Unsubscribe(s.topic)
		token.WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
	return nil
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
