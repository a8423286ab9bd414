// Package mqtt ingests plate detections from an MQTT broker and drives the
// lane simulator with them.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/infra/logger"
)

// Config defines the broker connection and detection topic.
type Config struct {
	Broker     string      `json:"broker" koanf:"broker"`
	ClientID   string      `json:"client_id" koanf:"client_id"`
	Username   string      `json:"username" koanf:"username"`
	Password   string      `json:"password" koanf:"password"`
	Topic      string      `json:"topic" koanf:"topic"`
	QoS        byte        `json:"qos" koanf:"qos"`
	UseTLS     bool        `json:"use_tls" koanf:"use_tls"`
	ClientCert string      `json:"client_cert" koanf:"client_cert"`
	ClientKey  string      `json:"client_key" koanf:"client_key"`
	CABundle   string      `json:"ca_bundle" koanf:"ca_bundle"`
	TLSConfig  *tls.Config `json:"-" koanf:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills the topic and client id.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "carbonlane/detections"
	}
	if c.ClientID == "" {
		c.ClientID = "carbonlane-" + uuid.NewString()[:8]
	}
}

// Validate checks the settings of an enabled subscriber.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if strings.TrimSpace(c.Topic) == "" {
		return errors.New("mqtt: topic is required")
	}
	return nil
}

// Detection is the message published by plate detectors.
type Detection struct {
	Action string `json:"action"`
	Plate  string `json:"plate"`
}

// Detection actions.
const (
	ActionEnter = "enter"
	ActionExit  = "exit"
)

// Lane is the part of the simulator the subscriber drives.
type Lane interface {
	Enter(ctx context.Context, plate string) (lane.Entry, error)
	Exit(ctx context.Context) (lane.Entry, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// DetectionSubscriber applies detections received on Config.Topic to a Lane.
type DetectionSubscriber struct {
	cfg     Config
	lane    Lane
	log     logger.Logger
	timeout time.Duration
	cli     pahoClient
}

// NewDetectionSubscriber prepares a subscriber. Run connects it.
func NewDetectionSubscriber(cfg Config, l Lane) (*DetectionSubscriber, error) {
	if l == nil {
		return nil, errors.New("mqtt: lane is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DetectionSubscriber{cfg: cfg, lane: l, log: logger.New("mqtt-detections"), timeout: 5 * time.Second}, nil
}

// Run connects, subscribes on every (re)connect and blocks until ctx is
// canceled.
func (s *DetectionSubscriber) Run(ctx context.Context) error {
	opts, err := NewClientOptions(s.cfg)
	if err != nil {
		return err
	}
	opts.OnConnect = func(c paho.Client) {
		s.log.Infof("MQTT connected, subscribing to %s", s.cfg.Topic)
		if token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage); token.Wait() && token.Error() != nil {
			s.log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		s.log.Warnf("reconnecting to MQTT broker")
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.cli = cli
	<-ctx.Done()
	cli.Disconnect(250)
	return nil
}

func (s *DetectionSubscriber) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.Apply(ctx, msg.Payload()); err != nil {
		s.log.Warnf("detection on %s dropped: %v", msg.Topic(), err)
	}
}

// Apply decodes one detection payload and applies it to the lane.
func (s *DetectionSubscriber) Apply(ctx context.Context, payload []byte) error {
	var d Detection
	if err := json.Unmarshal(payload, &d); err != nil {
		return fmt.Errorf("decode detection: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(d.Action)) {
	case ActionEnter:
		e, err := s.lane.Enter(ctx, d.Plate)
		if err != nil {
			return err
		}
		s.log.Debugw("detection entered", map[string]any{"entry_id": e.ID, "numberplate": e.Plate})
	case ActionExit:
		e, err := s.lane.Exit(ctx)
		if err != nil {
			return err
		}
		s.log.Debugw("detection exited", map[string]any{"entry_id": e.ID, "numberplate": e.Plate})
	default:
		return lane.InvalidInput("action", "unknown action %q", d.Action)
	}
	return nil
}

// NewClientOptions builds paho options from cfg.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the client certificate and CA bundle.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
