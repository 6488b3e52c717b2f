// Package mqtt publishes decoded temperature readings to an MQTT broker,
// for setups where the thermometer feeds a home-automation bus.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nahidalam/BLE-Central/internal/central"
)

// Options configures a Publisher.
type Options struct {
	Broker   string // host:port
	ClientID string
	Topic    string
}

// Publisher forwards readings to a broker. Safe for use from the event loop;
// publishes block at most a few seconds.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher connects to the broker and returns a ready publisher.
func NewPublisher(opts Options) (*Publisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt: broker not configured")
	}
	if opts.ClientID == "" {
		opts.ClientID = "ble-central"
	}
	if opts.Topic == "" {
		opts.Topic = "thermometer/reading"
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(fmt.Sprintf("tcp://%s", opts.Broker))
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetKeepAlive(30 * time.Second)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("[mqtt] connection lost", "error", err)
	})
	co.SetOnConnectHandler(func(_ mqtt.Client) {
		slog.Info("[mqtt] connected", "broker", opts.Broker)
	})

	c := mqtt.NewClient(co)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	return &Publisher{client: c, topic: opts.Topic}, nil
}

// PublishReading publishes one reading as JSON.
func (p *Publisher) PublishReading(r central.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("mqtt: marshal reading: %w", err)
	}
	token := p.client.Publish(p.topic, 1, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt: publish timeout for %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish: %w", err)
	}
	slog.Debug("[mqtt] reading published", "topic", p.topic, "device", r.Device)
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
