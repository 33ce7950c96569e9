package tilt

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// RunSummary describes one finished run.
type RunSummary struct {
	Method    string   `json:"method"`
	Inputs    []string `json:"inputs"`
	Output    string   `json:"output"`
	Stats     Stats    `json:"stats"`
	Timestamp int64    `json:"timestamp"`
}

// Publisher sends run results to an MQTT broker.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	logger        *zap.Logger
}

// NewPublisher wraps a connected client. An empty prefix defaults to
// "octatilt".
func NewPublisher(client mqtt.Client, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = "octatilt"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,
		retain:        false,
		logger:        logger,
	}
}

// ConnectPublisher connects to the broker named by MQTT_BROKER or the
// config and returns a Publisher. It returns nil, nil when no broker is
// configured. MQTT_CLIENT_ID, MQTT_USERNAME and MQTT_PASSWORD override the
// config as well.
func ConnectPublisher(cfg MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = cfg.Broker
	}
	if broker == "" {
		logger.Debug("MQTT disabled: no broker configured")
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = cfg.ClientID
	}
	if clientID == "" {
		clientID = "octatilt"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = cfg.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = cfg.Password
		}
		opts.SetPassword(password)
	}
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", broker, err)
	}
	logger.Info("connected to MQTT broker", zap.String("broker", broker))
	return NewPublisher(client, cfg.PublishPrefix, logger), nil
}

// PublishRun publishes the summary and the records of a run to
// <prefix>/<method>/summary and <prefix>/<method>/records.
func (p *Publisher) PublishRun(summary RunSummary, records any) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	if summary.Timestamp == 0 {
		summary.Timestamp = time.Now().Unix()
	}

	if err := p.publishJSON(fmt.Sprintf("%s/%s/summary", p.publishPrefix, summary.Method), summary); err != nil {
		return err
	}
	if err := p.publishJSON(fmt.Sprintf("%s/%s/records", p.publishPrefix, summary.Method), records); err != nil {
		return err
	}
	p.logger.Info("published run results",
		zap.String("method", summary.Method), zap.String("prefix", p.publishPrefix))
	return nil
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", topic, err)
	}
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2).
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages are retained by the broker.
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
