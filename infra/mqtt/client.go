package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/vending/core/model"
	coremon "github.com/kilianp07/vending/core/monitoring"
	coremqtt "github.com/kilianp07/vending/core/mqtt"
	"github.com/kilianp07/vending/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	TopicPrefix string          `json:"topic_prefix"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	AuthMethod  string          `json:"auth_method"`
	QoS         map[string]byte `json:"qos"`
	LWTTopic    string          `json:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "vending-" + uuid.NewString()[:8]
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = coremqtt.DefaultPrefix
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	switch c.AuthMethod {
	case "", "username_password", "mtls", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %s", c.AuthMethod)
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt: invalid qos %d for %s", q, k)
		}
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes shelf commands and routes shelf traffic to an
// InboundHandler using Eclipse Paho.
type PahoClient struct {
	cli    pahoClient
	topics coremqtt.Topics
	qos    map[string]byte
	logger logger.Logger

	mu      sync.RWMutex
	handler coremqtt.InboundHandler

	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. Shelf topics are subscribed on
// every (re)connect; traffic is dropped until Listen is called.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		topics:     coremqtt.Topics{Prefix: cfg.TopicPrefix},
		qos:        cfg.QoS,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		pc.subscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
		coremon.CaptureException(err, map[string]string{"module": "mqtt"})
		if h := pc.inbound(); h != nil {
			h.HandleDisconnect(err)
		}
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
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
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) subscribe(c pahoClient) {
	subs := []struct {
		topic string
		kind  string
		cb    paho.MessageHandler
	}{
		{p.topics.HeartbeatFilter(), "heartbeat", p.onHeartbeat},
		{p.topics.ResponseFilter(), "response", p.onResponse},
	}
	for _, s := range subs {
		if token := c.Subscribe(s.topic, p.qosFor(s.kind), s.cb); token.Wait() && token.Error() != nil {
			p.logger.Errorf("subscribe %s error: %v", s.topic, token.Error())
			coremon.CaptureException(token.Error(), map[string]string{"module": "mqtt", "topic": s.topic})
		}
	}
}

// Listen routes inbound shelf traffic to h.
func (p *PahoClient) Listen(h coremqtt.InboundHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *PahoClient) inbound() coremqtt.InboundHandler {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handler
}

func (p *PahoClient) onHeartbeat(_ paho.Client, msg paho.Message) {
	shelf, err := coremqtt.ShelfFromTopic(msg.Topic())
	if err != nil {
		p.logger.Warnf("heartbeat: %v", err)
		return
	}
	if h := p.inbound(); h != nil {
		h.HandleHeartbeat(shelf)
	}
}

func (p *PahoClient) onResponse(_ paho.Client, msg paho.Message) {
	shelf, err := coremqtt.ShelfFromTopic(msg.Topic())
	if err != nil {
		p.logger.Warnf("response: %v", err)
		return
	}
	payload := string(msg.Payload())
	p.logger.Debugw("shelf response", map[string]any{"shelf": int(shelf), "payload": payload})
	if h := p.inbound(); h != nil {
		h.HandleResponse(shelf, payload)
	}
}

// SendCommand publishes "<itemId>,<quantity>" to the shelf command topic,
// retrying with exponential backoff. It fails fast with ErrNotConnected while
// the broker link is down.
func (p *PahoClient) SendCommand(shelf model.ShelfID, item model.ItemRef) error {
	if !p.IsConnected() {
		return fmt.Errorf("shelf %d: %w", shelf, coremqtt.ErrNotConnected)
	}
	topic := p.topics.Command(shelf)
	payload := item.Command()
	qos := p.qosFor("command")

	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent %s to %s", payload, topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	coremon.CaptureException(publishErr, map[string]string{
		"module":  "mqtt",
		"shelf":   shelf.String(),
		"item_id": strconv.Itoa(item.ID),
	})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// IsConnected reports the broker link state.
func (p *PahoClient) IsConnected() bool {
	return p.cli != nil && p.cli.IsConnected()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
