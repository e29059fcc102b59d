package vitals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/medops/triage/internal/domain/triage"
)

// MQTTConfig points the ingest at a ward monitor broker. Topic may contain
// wildcards; the default layout is ward/<patient_ref>/vitals.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

type vitalsRecorder interface {
	RecordVitals(ctx context.Context, patientRef string, reading triage.VitalReading, source string) (*Record, error)
}

// MQTTIngest subscribes to monitor readings and records each one. Malformed
// or invalid messages are logged and dropped.
type MQTTIngest struct {
	cfg    MQTTConfig
	client mqtt.Client
	rec    vitalsRecorder
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMQTTIngest(cfg MQTTConfig, rec vitalsRecorder, logger zerolog.Logger) *MQTTIngest {
	if cfg.Topic == "" {
		cfg.Topic = "ward/+/vitals"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)

	m := &MQTTIngest{
		cfg:    cfg,
		rec:    rec,
		logger: logger.With().Str("component", "mqtt-ingest").Logger(),
	}
	// Resubscribe after every reconnect; clean sessions drop subscriptions.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(cfg.Topic, cfg.QoS, m.onMessage); token.Wait() && token.Error() != nil {
			m.logger.Error().Err(token.Error()).Str("topic", cfg.Topic).Msg("subscribe")
			return
		}
		m.logger.Info().Str("topic", cfg.Topic).Msg("subscribed to vitals topic")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn().Err(err).Msg("mqtt connection lost")
	})
	m.client = mqtt.NewClient(opts)
	return m
}

// Start connects to the broker. Messages are recorded under ctx until Stop.
func (m *MQTTIngest) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		m.cancel()
		return fmt.Errorf("connect to mqtt broker %s: %w", m.cfg.Broker, token.Error())
	}
	return nil
}

func (m *MQTTIngest) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.Topic).WaitTimeout(time.Second)
		m.client.Disconnect(250)
	}
}

func (m *MQTTIngest) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx := m.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.handle(ctx, msg.Topic(), msg.Payload()); err != nil {
		m.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("drop vitals message")
	}
}

// handle decodes one message. The payload is either a RecordRequest or a
// bare reading, in which case the patient ref comes from the topic.
func (m *MQTTIngest) handle(ctx context.Context, topic string, payload []byte) error {
	var req RecordRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if req.Reading.IsEmpty() {
		if err := json.Unmarshal(payload, &req.Reading); err != nil {
			return fmt.Errorf("decode reading: %w", err)
		}
	}
	if req.PatientRef == "" {
		req.PatientRef = patientFromTopic(topic)
	}
	_, err := m.rec.RecordVitals(ctx, req.PatientRef, req.Reading, SourceMQTT)
	return err
}

// patientFromTopic returns the second level of ward/<patient_ref>/vitals.
func patientFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}
