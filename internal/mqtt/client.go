package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/emivaldigle/plate-recon-rp/internal/config"
)

// ErrPublishTimeout means the broker did not acknowledge within the
// configured window; the payload stays pending and is retried later.
var ErrPublishTimeout = errors.New("publish not acknowledged")

// Publisher is the outbound broker surface consumed by the services.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Client wraps the paho client with acknowledged QoS-1 publishes and
// auto-reconnect. Inbound handlers run on paho's delivery goroutine.
type Client struct {
	c              paho.Client
	publishTimeout time.Duration
	log            *zap.SugaredLogger
}

// NewClient connects to the broker.
func NewClient(cfg config.MQTTConfig, logger *zap.SugaredLogger) (*Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnf("disconnected from MQTT broker: %v", err)
		})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.BrokerURL, err)
	}
	return &Client{c: c, publishTimeout: cfg.PublishTimeout, log: logger}, nil
}

// Publish sends one QoS-1 message and waits for the broker ack.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.c.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(c.publishTimeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a QoS-1 handler for the topic.
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.c.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	c.log.Infof("subscribed to %s", topic)
	return nil
}

// Close disconnects, letting in-flight work finish.
func (c *Client) Close() {
	c.c.Disconnect(250)
}
