package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
)

// Topic suffixes under config.MQTT.TopicPrefix.
const (
	TopicGesture = "gesture"
	TopicCursor  = "cursor"
	TopicStatus  = "status"
)

var errTimeout = errors.New("mqtt operation timed out")

// mqttClient is the subset of mqtt.Client used by MQTT.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes gestures, cursor vectors and status changes as JSON.
type MQTT struct {
	client  mqttClient
	prefix  string
	qos     byte
	timeout time.Duration
	now     func() time.Time
}

// DialMQTT connects to the configured broker.
func DialMQTT(ctx context.Context, cfg config.MQTT, timeout time.Duration) (*MQTT, error) {
	ctx = logger.WithKV(logger.WithName(ctx, "mqtt"), "broker", cfg.Broker)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "airmouse-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WarnKV(ctx, "MQTT connection lost", "error", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.InfoKV(ctx, "MQTT connected", "client_id", clientID)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, errTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}

	return newMQTT(client, cfg, timeout), nil
}

func newMQTT(client mqttClient, cfg config.MQTT, timeout time.Duration) *MQTT {
	return &MQTT{
		client:  client,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: timeout,
		now:     time.Now,
	}
}

// Publish implements Publisher. Cursor updates are fire-and-forget; other
// messages wait for the broker acknowledgement up to the timeout.
func (m *MQTT) Publish(_ context.Context, msg protocol.Message) error {
	topic, qos, retained, ok := m.route(msg.Kind)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(NewEvent(msg, m.now()))
	if err != nil {
		return fmt.Errorf("encode mqtt event: %w", err)
	}

	token := m.client.Publish(topic, qos, retained, payload)
	if msg.Kind == protocol.KindCursor {
		return nil
	}

	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("%w: %s", errTimeout, topic)
	}

	if err = token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// Close disconnects, letting in-flight messages drain for up to 250ms.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}

func (m *MQTT) route(k protocol.Kind) (topic string, qos byte, retained, ok bool) {
	switch k {
	case protocol.KindGesture:
		return m.topic(TopicGesture), m.qos, false, true
	case protocol.KindCursor:
		return m.topic(TopicCursor), 0, false, true
	case protocol.KindMode, protocol.KindCalibrationComplete,
		protocol.KindTiltCalibrationComplete, protocol.KindCalibrationFailed:
		return m.topic(TopicStatus), m.qos, true, true
	default:
		return "", 0, false, false
	}
}

func (m *MQTT) topic(suffix string) string {
	return m.prefix + "/" + suffix
}
