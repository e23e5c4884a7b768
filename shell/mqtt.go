package shell

import (
	crand "crypto/rand"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/oklog/ulid"
	"github.com/vx-labs/shellstream/stream"
	"go.uber.org/zap"
)

const mqttPublishTimeout = 3 * time.Second

// ExitRecord is the payload published for every finished process.
type ExitRecord struct {
	ID          string            `json:"id"`
	Command     string            `json:"command"`
	Status      stream.ExitStatus `json:"status"`
	Error       string            `json:"error,omitempty"`
	OutputBytes uint64            `json:"output_bytes"`
	SubmittedAt time.Time         `json:"submitted_at"`
	ElapsedMs   int64             `json:"elapsed_ms"`
}

func newExitRecord(info Info, status stream.ExitStatus, err error) ExitRecord {
	record := ExitRecord{
		ID:          info.ID,
		Command:     info.Command,
		Status:      status,
		OutputBytes: info.OutputBytes,
		SubmittedAt: info.SubmittedAt,
		ElapsedMs:   elapsed(info).Milliseconds(),
	}
	if err != nil {
		record.Error = err.Error()
	}
	return record
}

// mqttTopic returns the topic a process exit record is published on.
func mqttTopic(prefix, id string) string {
	return fmt.Sprintf("%s/%s", prefix, id)
}

type MQTTNotifier struct {
	client MQTT.Client
	topic  string
	logger *zap.Logger
}

// NewMQTTNotifier connects to broker and returns an Observer publishing an
// ExitRecord on topic/<process id> when a process exits. A tls:// broker URL
// enables TLS.
func NewMQTTNotifier(broker, username, password, topic string, logger *zap.Logger) (*MQTTNotifier, error) {
	opts := MQTT.NewClientOptions().AddBroker(broker)
	opts.Username = username
	opts.Password = password
	opts.ClientID = fmt.Sprintf("shellstream-%s", ulid.MustNew(ulid.Now(), crand.Reader))
	brokerURL, err := url.Parse(broker)
	if err != nil {
		return nil, err
	}
	if brokerURL.Scheme == "tls" {
		host, _, _ := net.SplitHostPort(brokerURL.Host)
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		}
	}
	opts.AutoReconnect = true
	opts.OnConnectionLost = func(_ MQTT.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}
	c := MQTT.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	logger.Info("connected to mqtt broker", zap.String("mqtt_broker", broker))
	return &MQTTNotifier{client: c, topic: topic, logger: logger}, nil
}

func (m *MQTTNotifier) ProcessSubmitted(Info) {}

func (m *MQTTNotifier) ProcessExited(info Info, status stream.ExitStatus, err error) {
	payload, encodeErr := json.Marshal(newExitRecord(info, status, err))
	if encodeErr != nil {
		m.logger.Error("failed to encode exit record", zap.String("process_id", info.ID), zap.Error(encodeErr))
		return
	}
	topic := mqttTopic(m.topic, info.ID)
	token := m.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		m.logger.Warn("mqtt publish timed out", zap.String("mqtt_topic", topic))
		return
	}
	if token.Error() != nil {
		m.logger.Error("failed to publish exit record", zap.String("mqtt_topic", topic), zap.Error(token.Error()))
		return
	}
	m.logger.Debug("exit record published", zap.String("mqtt_topic", topic))
}

func (m *MQTTNotifier) Close() {
	m.client.Disconnect(500)
}
