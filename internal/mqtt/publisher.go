// Package mqtt publishes ingest-rate figures to an MQTT broker for
// external monitoring.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ibisek/ogn-logbook/pkg/logger"
)

// Publisher is a fire-and-forget MQTT client. Publishes are QoS 0; a
// dropped message costs one monitoring sample, nothing more.
type Publisher struct {
	client paho.Client
	logger *logger.Logger
}

// NewPublisher connects to the broker. Username and password may be empty.
func NewPublisher(brokerURL, clientID, username, password string, log *logger.Logger) (*Publisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)
	if username != "" {
		opts.SetUsername(username).SetPassword(password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", brokerURL, err)
	}

	log.Info("Connected to MQTT broker", logger.String("broker", brokerURL))
	return &Publisher{
		client: client,
		logger: log.Named("mqtt"),
	}, nil
}

// Publish sends one message without waiting for delivery.
func (p *Publisher) Publish(topic, payload string) {
	token := p.client.Publish(topic, 0, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			p.logger.Warn("Failed to publish",
				logger.String("topic", topic),
				logger.Error(token.Error()))
		}
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
