package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/okian/lineup/internal/domain/model"
	"github.com/okian/lineup/pkg/logger"
	"github.com/okian/lineup/pkg/metrics"
)

// MQTTConfig configures the MQTT emitter.
type MQTTConfig struct {
	// Broker is host:port without scheme.
	Broker   string
	ClientID string
	// Topic is the prefix; events go to <Topic>/<kind>.
	Topic string
	QoS   byte
}

const publishTimeout = 2 * time.Second

// MQTTEmitter publishes progress events to an MQTT broker.
type MQTTEmitter struct {
	cfg    MQTTConfig
	client mqtt.Client
	log    logger.Logger

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter. Call Connect before publishing.
func NewMQTTEmitter(cfg MQTTConfig) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		log:       logger.Get().Named("mqtt"),
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection with automatic reconnects.
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.log.Info(ctx, "mqtt connection established", logger.String("broker", e.cfg.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.log.Warn(ctx, "mqtt connection lost, will auto-reconnect",
			logger.String("broker", e.cfg.Broker), logger.Error(err))
	}

	e.client = mqtt.NewClient(opts)
	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// Publish implements scan.Sink. Delivery is confirmed in the background.
func (e *MQTTEmitter) Publish(ctx context.Context, ev model.Event) {
	if !e.isConnected() {
		e.fail()
		metrics.RecordEventDropped("mqtt")
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		e.fail()
		e.log.Error(ctx, "marshal event", logger.Error(err))
		return
	}

	topic := fmt.Sprintf("%s/%s", e.cfg.Topic, ev.Kind)
	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			e.fail()
			metrics.RecordEventDropped("mqtt")
			return
		}
		if err := token.Error(); err != nil {
			e.fail()
			metrics.RecordEventDropped("mqtt")
			e.log.Warn(ctx, "mqtt publish failed", logger.String("topic", topic), logger.Error(err))
			return
		}
		e.mu.Lock()
		e.published[topic]++
		e.mu.Unlock()
		metrics.RecordEventPublished("mqtt")
	}()
}

// Disconnect closes the connection with a short grace period.
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.setConnected(false)
}

// MQTTStats are emitter counters.
type MQTTStats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Stats returns a snapshot of the emitter counters.
func (e *MQTTEmitter) Stats() MQTTStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return MQTTStats{Connected: e.connected, Published: published, Errors: e.errors}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) fail() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
