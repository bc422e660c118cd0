package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tuxedo2mqtt/internal/config"
	"tuxedo2mqtt/internal/log"
	"tuxedo2mqtt/internal/panel"
	"tuxedo2mqtt/internal/types"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"
)

type MQTT struct {
	config *config.MQTTConfig
	panel  *panel.Panel
	log    *log.Logger
	client mqtt.Client
	topics *Topics
}

func NewMQTT(cfg *config.MQTTConfig, p *panel.Panel, logger *log.Logger) *MQTT {
	return &MQTT{
		config: cfg,
		panel:  p,
		log:    logger,
		topics: NewTopics(cfg.Prefix),
	}
}

func (m *MQTT) Connect() error {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if m.config.CA != "" || m.config.Cert != "" {
		tlsConfig, err := m.tlsConfig()
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsConfig)
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, m.config.Host, m.config.Port))
	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetKeepAlive(time.Duration(m.config.Keepalive) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), m.config.Retain)

	m.client = mqtt.NewClient(opts)

	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s:%d", m.config.Host, m.config.Port)
	return nil
}

func (m *MQTT) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: !m.config.RejectUnauthorized}
	if m.config.CA != "" {
		ca, err := os.ReadFile(m.config.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %v", err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(ca)
		cfg.RootCAs = pool
	}
	if m.config.Cert != "" && m.config.Key != "" {
		cert, err := tls.LoadX509KeyPair(m.config.Cert, m.config.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT client certificate: %v", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.publishOnlineStatus()
	m.subscribeCommandTopic()
	m.publishCurrentState()
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

// Listen consumes panel state events and publishes them until the panel's
// event channel closes.
func (m *MQTT) Listen() {
	for event := range m.panel.Events() {
		m.PublishStateEvent(event)
	}
}

func (m *MQTT) subscribeCommandTopic() {
	topic := m.topics.Command()
	token := m.client.Subscribe(topic, byte(m.config.QOS), m.handleMessage)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Subscribed to topic: %s", topic)
	}
}

func (m *MQTT) handleMessage(client mqtt.Client, msg mqtt.Message) {
	payload := string(msg.Payload())
	m.log.Debug("Received message on topic %s: %s", msg.Topic(), payload)

	// Commands may carry a per-call entry code: "ARM_AWAY 1234".
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		m.log.Warning("Received empty command")
		return
	}
	command := fields[0]
	code := ""
	if len(fields) > 1 {
		code = fields[1]
	}

	// Arm and disarm block for the settle delay, so run them off the
	// paho callback goroutine.
	go m.handleCommand(command, code)
}

func (m *MQTT) handleCommand(command, code string) {
	ctx := context.Background()
	var err error
	switch command {
	case "ARM_AWAY":
		err = m.panel.Arm(ctx, types.ArmModeAway, code)
	case "ARM_HOME":
		err = m.panel.Arm(ctx, types.ArmModeHome, code)
	case "ARM_NIGHT":
		err = m.panel.Arm(ctx, types.ArmModeNight, code)
	case "DISARM":
		err = m.panel.Disarm(ctx, code)
	default:
		m.log.Warning("Unknown alarm command: %s", command)
		return
	}
	if err != nil {
		m.log.Error("Command %s failed: %v", command, err)
	}
}

func (m *MQTT) publishOnlineStatus() {
	m.Publish(m.topics.Status(), onlinePayload, true)
}

func (m *MQTT) publishCurrentState() {
	state, raw := m.panel.State()
	m.PublishStateEvent(types.StateEvent{State: state, RawStatus: raw, Time: time.Now()})
}

func (m *MQTT) PublishStateEvent(event types.StateEvent) {
	payload := map[string]interface{}{
		"state":  HAState(event.State),
		"status": event.RawStatus,
		"time":   event.Time.Format(time.RFC3339),
	}
	m.Publish(m.topics.State(), payload, true)
}

func (m *MQTT) GetPrefix() string {
	return m.config.Prefix
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

func (m *MQTT) Publish(topic string, message interface{}, retain bool) {
	var payload []byte
	switch v := message.(type) {
	case string:
		payload = []byte(v)
	default:
		var err error
		payload, err = json.Marshal(message)
		if err != nil {
			m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
			return
		}
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Published message to topic: %s", topic)
	}
}

func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.Publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(250)
	}
}
